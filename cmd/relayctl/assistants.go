package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var assistantsCmd = &cobra.Command{
	Use:     "assistants",
	Aliases: []string{"assistant", "asst"},
	Short:   "List, inspect and edit assistants",
}

var assistantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assistants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		list, err := client.ListAssistants(cmd.Context(), limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMODEL")
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.Model)
		}
		return w.Flush()
	},
}

var assistantsShowCmd = &cobra.Command{
	Use:   "show <assistant-id>",
	Short: "Show one assistant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		a, err := client.GetAssistant(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:           %s\n", a.ID)
		fmt.Printf("Name:         %s\n", a.Name)
		fmt.Printf("Model:        %s\n", a.Model)
		fmt.Printf("Instructions: %s\n", a.Instructions)
		return nil
	},
}

var assistantsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an assistant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		instructions, _ := cmd.Flags().GetString("instructions")
		a, err := client.CreateAssistant(cmd.Context(), args[0], instructions)
		if err != nil {
			return err
		}

		fmt.Println(a.ID)
		return nil
	},
}

var assistantsUpdateCmd = &cobra.Command{
	Use:   "update <assistant-id>",
	Short: "Update an assistant's instructions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		instructions, _ := cmd.Flags().GetString("instructions")
		a, err := client.UpdateAssistant(cmd.Context(), args[0], instructions)
		if err != nil {
			return err
		}

		fmt.Printf("updated %s\n", a.ID)
		return nil
	},
}

var assistantsDeleteCmd = &cobra.Command{
	Use:   "delete <assistant-id>",
	Short: "Delete an assistant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		deleted, err := client.DeleteAssistant(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("assistant %s was not deleted", args[0])
		}

		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	assistantsListCmd.Flags().Int("limit", 20, "max assistants to list")
	assistantsCreateCmd.Flags().String("instructions", "", "system instructions")
	assistantsUpdateCmd.Flags().String("instructions", "", "system instructions")

	assistantsCmd.AddCommand(
		assistantsListCmd,
		assistantsShowCmd,
		assistantsCreateCmd,
		assistantsUpdateCmd,
		assistantsDeleteCmd,
	)
}
