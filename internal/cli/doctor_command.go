package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lwdecomp/internal/driver"
)

func (a *app) doctorCommand() *cobra.Command {
	var cacheFile, output string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run dependency and filesystem preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, key, err := a.cacheStore(a.cfg, &runFlags{cacheFile: cacheFile})
			if err != nil {
				return err
			}
			res := driver.Doctor(driver.DoctorOptions{
				EngineCommand: a.cfg.Engine.Command,
				Store:         store,
				CacheKey:      key,
				Layout:        layoutOf(a.cfg),
				OutputRoot:    output,
			})
			if a.flags.jsonOut {
				if err := printJSON(a.stdout, res); err != nil {
					return err
				}
				if !res.OK {
					return errors.New("doctor checks failed")
				}
				return nil
			}

			for _, c := range res.Checks {
				status := "ok"
				if !c.OK {
					status = "fail"
				}
				fmt.Fprintf(a.stdout, "%s: %s (%s)\n", c.Name, status, c.Message)
			}
			if !res.OK {
				return errors.New("doctor checks failed")
			}
			fmt.Fprintln(a.stdout, "doctor: all checks passed")
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheFile, "cache-file", "", "install path cache file (default next to the executable)")
	cmd.Flags().StringVar(&output, "output", "", "also check that this output directory is writable")
	return cmd
}
