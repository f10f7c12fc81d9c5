package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var removeIssue string

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an issue and its status log from the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if removeIssue == "" {
			return fmt.Errorf("please supply an issue to remove")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.DeleteIssueByKey(removeIssue)
		if err != nil {
			return err
		}
		if n == 0 {
			log.Printf("issue %s not found", removeIssue)
			return nil
		}
		log.Printf("deleted issue %s", removeIssue)
		return nil
	},
}

func init() {
	removeCmd.Flags().StringVarP(&removeIssue, "issue", "i", "", "issue key to remove from the database")
	rootCmd.AddCommand(removeCmd)
}
