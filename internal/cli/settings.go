package cli

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lazyweave/internal/logging"
)

const envPrefix = "LAZY"

// Setting keys. Each is a persistent flag and LAZY_<KEY> in the environment.
const (
	keyConcurrency = "concurrency"
	keyLogLevel    = "log-level"
	keyNoColor     = "no-color"
	keyTrace       = "trace"
)

// Settings are the tool's own options, as opposed to the project
// configuration in lazy.config.*.
type Settings struct {
	Concurrency int
	LogLevel    slog.Level
	NoColor     bool
	// TracePath is empty when no trace is requested; otherwise absolute.
	TracePath string
}

func registerSettingFlags(fs *pflag.FlagSet) {
	fs.Int(keyConcurrency, runtime.NumCPU(), "maximum number of tasks running at once")
	fs.String(keyLogLevel, "warn", "diagnostic log level: debug, info, warn or error")
	fs.Bool(keyNoColor, false, "disable coloured output")
	fs.String(keyTrace, "", "write the canonical JSON trace of the run to this path")
}

// loadSettings merges flags, the environment snapshot and defaults, in that
// order of precedence.
func loadSettings(fs *pflag.FlagSet, env Env) (Settings, error) {
	v := viper.New()
	v.SetDefault(keyConcurrency, runtime.NumCPU())
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyNoColor, false)
	v.SetDefault(keyTrace, "")

	// The snapshot stands in for the process environment; it outranks the
	// defaults above and is outranked by changed flags.
	for _, key := range []string{keyConcurrency, keyLogLevel, keyNoColor, keyTrace} {
		if val, ok := env.Lookup(envVarName(key)); ok {
			v.SetDefault(key, val)
		}
	}
	if err := v.BindPFlags(fs); err != nil {
		return Settings{}, err
	}

	s := Settings{
		Concurrency: v.GetInt(keyConcurrency),
		NoColor:     v.GetBool(keyNoColor),
	}
	if s.Concurrency < 1 {
		return Settings{}, invalidInvocationf("--%s must be at least 1 (got %q)", keyConcurrency, v.GetString(keyConcurrency))
	}
	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return Settings{}, &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error()}
	}
	s.LogLevel = level
	if p := strings.TrimSpace(v.GetString(keyTrace)); p != "" {
		s.TracePath = resolveUnderWorkDir(env.WorkDir, p)
	}
	return s, nil
}

func envVarName(key string) string {
	return fmt.Sprintf("%s_%s", envPrefix, strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
}
