package sandbox

// Role identifies which toolchain stage a sandbox hosts.
type Role string

const (
	// RoleCompiler hosts the C compiler (minac).
	RoleCompiler Role = "compiler"

	// RoleAssembler hosts the assembler (mina-as).
	RoleAssembler Role = "assembler"

	// RoleSimulator hosts the instruction set simulator (mina-sim).
	RoleSimulator Role = "simulator"

	// RoleAnalyzer hosts the binary analyzer (mina-elf-info).
	RoleAnalyzer Role = "analyzer"
)

// Roles lists every role in pipeline order.
var Roles = []Role{RoleCompiler, RoleAssembler, RoleSimulator, RoleAnalyzer}

// Tool returns the program name of the tool hosted by this role.
// It is passed as argv[0] and used as the default payload base name.
func (r Role) Tool() string {
	switch r {
	case RoleCompiler:
		return "minac"
	case RoleAssembler:
		return "mina-as"
	case RoleSimulator:
		return "mina-sim"
	case RoleAnalyzer:
		return "mina-elf-info"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCompiler, RoleAssembler, RoleSimulator, RoleAnalyzer:
		return true
	}
	return false
}
