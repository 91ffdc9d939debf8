package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elf/internal/search"
)

var (
	searchTenant     string
	searchProject    string
	searchAgent      string
	searchQuery      string
	searchTopK       int
	searchCandidateK int
	searchReadProf   string
	searchRecordHits bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a ranked search against an agent's visible notes",
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchTenant, "tenant", "", "Tenant ID (required)")
	searchCmd.Flags().StringVar(&searchProject, "project", "", "Project ID (required)")
	searchCmd.Flags().StringVar(&searchAgent, "agent", "", "Requesting agent ID (required)")
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "Search query text (required)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "Result count (0 = configured default)")
	searchCmd.Flags().IntVar(&searchCandidateK, "candidate-k", 0, "Candidate set size before rerank (0 = configured default)")
	searchCmd.Flags().StringVar(&searchReadProf, "read-profile", "private_plus_project", "private_only | private_plus_project | all_scopes")
	searchCmd.Flags().BoolVar(&searchRecordHits, "record-hits", false, "Increment hit_count/last_hit_at for returned notes")
	_ = searchCmd.MarkFlagRequired("tenant")
	_ = searchCmd.MarkFlagRequired("project")
	_ = searchCmd.MarkFlagRequired("agent")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	resp, err := a.Search.Search(cmd.Context(), search.Request{
		TenantID: searchTenant, ProjectID: searchProject, AgentID: searchAgent,
		Query: searchQuery, TopK: searchTopK, CandidateK: searchCandidateK,
		ReadProfile: searchReadProf, RecordHits: searchRecordHits,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
