package command

import (
	"flag"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Commands returns every fundctl subcommand bound to env, keyed by group.
func Commands(env *Env) map[string][]subcommands.Command {
	return map[string][]subcommands.Command{
		"reports": {
			&summaryCmd{env: env},
			&portfolioCmd{env: env},
			&analyticsCmd{env: env},
			&reportCmd{env: env},
			&ledgerCmd{env: env},
			&auditLogCmd{env: env},
		},
		"treasurer": {
			&addMemberCmd{env: env},
			&setStatusCmd{env: env},
			&contributeCmd{env: env},
			&purchaseCmd{env: env},
			&adjustHoldingsCmd{env: env},
			&buyoutCmd{env: env},
			&importCmd{env: env},
		},
	}
}

// Register adds the subcommands to c. A main package calls Register and then
// Execute on the user-selected one.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	for group, cmds := range Commands(env) {
		for _, cmd := range cmds {
			c.Register(cmd, group)
		}
	}
}

// flagPredictions overrides the free-text default for flags with a closed set of values.
var flagPredictions = map[string]complete.Predictor{
	"type":   predict.Set{"all", "contribution", "purchase"},
	"role":   predict.Set{"member", "admin"},
	"status": predict.Set{"active", "left"},
	"format": predict.Set{"csv", "json"},
	"html":   predict.Files("*.html"),
}

// Completion describes the command line for shell completion. Flags are read
// from each command's SetFlags so the two cannot drift apart.
func Completion(global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: predictFlags(global),
	}

	for _, cmds := range Commands(&Env{}) {
		for _, cmd := range cmds {
			fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
			cmd.SetFlags(fs)

			sub := &complete.Command{Flags: predictFlags(fs)}
			if cmd.Name() == "import" {
				sub.Args = predict.Or(predict.Files("*.csv"), predict.Files("*.json"))
			}

			root.Sub[cmd.Name()] = sub
		}
	}

	for _, name := range []string{"help", "flags", "commands"} {
		root.Sub[name] = &complete.Command{}
	}

	return root
}

func predictFlags(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := map[string]complete.Predictor{}

	fs.VisitAll(func(f *flag.Flag) {
		if p, ok := flagPredictions[f.Name]; ok {
			flags[f.Name] = p
			return
		}

		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[f.Name] = predict.Nothing
			return
		}

		flags[f.Name] = predict.Something
	})

	return flags
}
