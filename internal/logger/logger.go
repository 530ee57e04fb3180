package logger

import (
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
)

// Configure adjusts the process-wide logger. verbose enables debug output,
// silent suppresses everything but fatal messages.
func Configure(verbose, silent, noColor bool) {
	if verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
	}
	if noColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
	}
	if silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

func Infof(format string, v ...interface{}) {
	gologger.Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	gologger.Warning().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	gologger.Error().Msgf(format, v...)
}

func Debugf(format string, v ...interface{}) {
	gologger.Debug().Msgf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	gologger.Fatal().Msgf(format, v...)
}
