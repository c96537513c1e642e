package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tripatlas/curator/internal/model"
)

// seedFile is the on-disk layout of a seed manifest. Entries are
// registered first so approvals can reference them; locations run
// through the normal ingest path and pick up correction rules.
type seedFile struct {
	Entries []struct {
		Key      string `yaml:"key"`
		Approved bool   `yaml:"approved"`
	} `yaml:"entries"`
	Locations []struct {
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
		Key      string `yaml:"key"`
	} `yaml:"locations"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <manifest.yaml>",
	Short: "Load taxonomy entries and locations from a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "seed: read %s", args[0])
		}
		var manifest seedFile
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return eris.Wrapf(err, "seed: parse %s", args[0])
		}

		svc, err := initServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		for _, e := range manifest.Entries {
			existed, err := svc.taxonomy.Ensure(ctx, e.Key)
			if err != nil {
				return eris.Wrapf(err, "seed: entry %s", e.Key)
			}
			if e.Approved {
				if _, err := svc.taxonomy.Approve(ctx, e.Key); err != nil {
					// Re-running a manifest hits already approved entries.
					zap.L().Debug("seed: approve skipped", zap.String("key", e.Key), zap.Error(err))
				}
			}
			if existed {
				zap.L().Debug("seed: entry already present", zap.String("key", e.Key))
			}
		}

		for _, l := range manifest.Locations {
			if _, err := ingestLocation(ctx, svc, l.Name, model.Category(l.Category), l.Key); err != nil {
				return eris.Wrapf(err, "seed: location %s", l.Name)
			}
		}

		fmt.Printf("seeded %d entries, %d locations\n", len(manifest.Entries), len(manifest.Locations))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
