package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/survey"
)

func createConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	})
	return configCmd
}

func createMappingsCmd() *cobra.Command {
	mappingsCmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage learned column and entity-type mappings",
	}

	var critical bool
	setColumn := &cobra.Command{
		Use:   "set-column [original] [canonical]",
		Short: "Map a survey header to a canonical column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openResources(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer res.Close()
			return res.store.UpsertColumnRename(cmd.Context(), store.ColumnRename{
				OriginalName:  args[0],
				CanonicalName: args[1],
				Critical:      critical,
			})
		},
	}
	setColumn.Flags().BoolVar(&critical, "critical", false, "mark the canonical column as critical")

	setType := &cobra.Command{
		Use:   "set-entity-type [survey-label] [registry-label]",
		Short: "Map a survey entity type to a registry type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openResources(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer res.Close()
			return res.store.UpsertEntityTypeMapping(cmd.Context(), store.EntityTypeMapping{
				SurveyLabel:    args[0],
				CanonicalLabel: args[1],
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the stored mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openResources(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer res.Close()

			renames, err := res.store.ColumnRenames(cmd.Context())
			if err != nil {
				return err
			}
			types, err := res.store.EntityTypeMappings(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tFROM\tTO\tCRITICAL\tUPDATED")
			for _, r := range renames {
				fmt.Fprintf(w, "column\t%s\t%s\t%v\t%s\n", r.OriginalName, r.CanonicalName, r.Critical, r.UpdatedAt.Format("2006-01-02 15:04"))
			}
			for _, m := range types {
				fmt.Fprintf(w, "entity-type\t%s\t%s\t\t%s\n", m.SurveyLabel, m.CanonicalLabel, m.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	mappingsCmd.AddCommand(setColumn, setType, list)
	return mappingsCmd
}

func createGroupsCmd() *cobra.Command {
	groupsCmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage per-year column groups",
	}

	set := &cobra.Command{
		Use:   "set [year] [groups.yaml]",
		Short: "Store the column groups of a year from a YAML list of name/start/end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil || year <= 0 {
				return fmt.Errorf("invalid year: %s", args[0])
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read groups file: %w", err)
			}
			var groups []survey.ColumnGroup
			if err := yaml.Unmarshal(raw, &groups); err != nil {
				return fmt.Errorf("failed to parse groups file: %w", err)
			}

			res, err := openResources(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer res.Close()
			if err := res.store.UpsertGroups(cmd.Context(), store.GroupDefinition{Year: year, Groups: groups}); err != nil {
				return err
			}
			log.Info().Int("year", year).Int("groups", len(groups)).Msg("column groups stored")
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show [year]",
		Short: "Print the stored column groups of a year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year: %s", args[0])
			}
			res, err := openResources(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer res.Close()
			def, err := res.store.Groups(cmd.Context(), year)
			if err != nil {
				return fmt.Errorf("groups for %d: %w", year, err)
			}
			out, err := yaml.Marshal(def.Groups)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}

	groupsCmd.AddCommand(set, show)
	return groupsCmd
}

func createRegistryCmd() *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the entity registry",
	}
	registryCmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List the registry entity types",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openResources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer res.Close()
			types, err := res.registry.Types(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range types {
				fmt.Println(t)
			}
			return nil
		},
	})
	return registryCmd
}
