package mainboilerplate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ConfigRootEnv names an additional directory searched for configuration.
const ConfigRootEnv = "TOPOPLAN_CONFIG_ROOT"

// ConfigPaths returns candidate paths of the INI file |configName|, in the
// order they're searched:
//   - The current working directory.
//   - ~/.config/topoplan (under the user's $HOME or %UserProfile% directory).
//   - $TOPOPLAN_CONFIG_ROOT, if set.
func ConfigPaths(configName string) []string {
	var dirs = []string{"."}

	for _, env := range []string{"HOME", "UserProfile"} {
		if home := os.Getenv(env); home != "" {
			dirs = append(dirs, filepath.Join(home, ".config", "topoplan"))
		}
	}
	if root := os.Getenv(ConfigRootEnv); root != "" {
		dirs = append(dirs, root)
	}

	var out = make([]string, len(dirs))
	for i, dir := range dirs {
		out[i] = filepath.Join(dir, configName)
	}
	return out
}

// ParseConfig applies the first INI file of ConfigPaths(|configName|) which
// exists, and then parses |args| over it. Flags and environment bindings
// therefore override INI settings. Options of the INI file which |parser|
// doesn't know are ignored. The applied INI path is returned, or "" if no
// file was found.
func ParseConfig(parser *flags.Parser, configName string, args []string) (string, error) {
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown

	var applied string
	var iniParser = flags.NewIniParser(parser)

	for _, path := range ConfigPaths(configName) {
		if err := iniParser.ParseFile(path); os.IsNotExist(err) {
			continue
		} else if err != nil {
			parser.Options = origOptions
			return "", errors.WithMessagef(err, "parsing %s", path)
		}
		applied = path
		break
	}
	parser.Options = origOptions

	if _, err := parser.ParseArgs(args); err != nil {
		return applied, err
	}
	return applied, nil
}

// MustParseConfig parses os.Args over the INI file |configName|, exiting the
// process on any input error. go-flags has already reported input errors by
// the time they're returned. Errors in the definition of |parser| panic.
func MustParseConfig(parser *flags.Parser, configName string) {
	var path, err = ParseConfig(parser, configName, os.Args[1:])
	if err == nil {
		if path != "" {
			log.WithField("path", path).Debug("applied configuration file")
		}
		return
	}

	var flagErr *flags.Error
	if !errors.As(err, &flagErr) {
		Must(err, "fatal error")
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		panic(err)

	case flags.ErrCommandRequired:
		// Follow "Please specify one command of: ..." with the full usage.
		os.Stderr.WriteString("\n")
		parser.WriteHelp(os.Stderr)
		fmt.Fprintf(os.Stderr, "\n%s\n", VersionString())

	case flags.ErrHelp:
		if parser.Options&flags.PrintErrors == 0 {
			parser.WriteHelp(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "\n%s\n", VersionString())

	default:
		// go-flags reports argument errors itself, but not those of the INI file.
		if _, direct := err.(*flags.Error); !direct {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	os.Exit(1)
}

// VersionString describes the running build.
func VersionString() string {
	return fmt.Sprintf("Version %s, built at %s.", Version, BuildDate)
}

// AddPrintConfigCmd adds a "print-config" command to the Parser, which writes
// the combined configuration of |configName|, flags, and environment to |w|
// in INI format.
func AddPrintConfigCmd(parser *flags.Parser, configName string, w io.Writer) {
	var _, err = parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{parser: parser, w: w})
	Must(err, "failed to add print-config command")
}

// AddVersionCmd adds a "version" command to the Parser, which writes
// VersionString to |w|.
func AddVersionCmd(parser *flags.Parser, w io.Writer) {
	var _, err = parser.AddCommand("version", "Print the version and exit", `
version prints the release and build date of this binary.
`, &printVersion{w: w})
	Must(err, "failed to add version command")
}

type printConfig struct {
	parser *flags.Parser
	w      io.Writer
}

func (p *printConfig) Execute([]string) error {
	flags.NewIniParser(p.parser).Write(p.w,
		flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}

type printVersion struct {
	w io.Writer
}

func (p *printVersion) Execute([]string) error {
	var _, err = fmt.Fprintln(p.w, VersionString())
	return err
}
