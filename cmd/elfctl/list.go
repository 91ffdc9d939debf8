package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/writegate"
)

var (
	listTenant  string
	listProject string
	listAgent   string
	listScope   string
	listStatus  string
	listType    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes visible to an agent, optionally filtered by scope/status/type",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listTenant, "tenant", "", "Tenant ID (required)")
	listCmd.Flags().StringVar(&listProject, "project", "", "Project ID (required)")
	listCmd.Flags().StringVar(&listAgent, "agent", "", "Requesting agent ID")
	listCmd.Flags().StringVar(&listScope, "scope", "", "Scope filter: agent_private | project_shared | org_shared")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Status filter (default: active)")
	listCmd.Flags().StringVar(&listType, "type", "", "Note type filter")
	_ = listCmd.MarkFlagRequired("tenant")
	_ = listCmd.MarkFlagRequired("project")
}

func runList(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	req := writegate.ListRequest{TenantID: listTenant, ProjectID: listProject, AgentID: listAgent}
	if listScope != "" {
		scope := models.Scope(listScope)
		req.Scope = &scope
	}
	if listStatus != "" {
		req.Status = &listStatus
	}
	if listType != "" {
		noteType := models.NoteType(listType)
		req.Type = &noteType
	}

	resp, err := a.Writegate.List(cmd.Context(), req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Items)
}
