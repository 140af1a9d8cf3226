package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/siherrmann/controlrag/model"
	"github.com/spf13/cobra"
)

var (
	queryStream   bool
	queryJSON     bool
	queryScope    string
	queryTopK     int
	queryMaxTok   int
	queryControls []string
	queryFamilies []string
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about security controls",
	Long: `Retrieves the most relevant control text and generates an answer.
Questions naming a control (for example AC-2) are answered with the
sections Purpose, Control Requirements, Common Implementations and
Typical Evidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "print the answer while it is generated")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the response as JSON")
	queryCmd.Flags().StringVar(&queryScope, "scope", "shared", "corpus to search: shared, private or both")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (0 = configured default)")
	queryCmd.Flags().IntVar(&queryMaxTok, "max-tokens", 0, "maximum answer tokens (0 = configured default)")
	queryCmd.Flags().StringSliceVar(&queryControls, "control", nil, "restrict retrieval to control ids")
	queryCmd.Flags().StringSliceVar(&queryFamilies, "family", nil, "restrict retrieval to control families")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	scope, err := model.ParseSearchScope(queryScope)
	if err != nil {
		return err
	}
	if queryStream && queryJSON {
		return fmt.Errorf("--stream and --json cannot be combined")
	}

	req := model.QueryRequest{
		Query:          args[0],
		ControlFilters: queryControls,
		FamilyFilters:  queryFamilies,
		TopK:           queryTopK,
		MaxTokens:      queryMaxTok,
		SearchScope:    scope,
	}

	return withApp(cmd, appOptions{embedder: true, generator: true}, func(a app) error {
		if queryStream {
			return streamQuery(cmd, a, req)
		}

		response, err := a.Query(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if queryJSON {
			data, err := json.MarshalIndent(response, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal response: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}

		cmd.Println(response.Answer)
		printReferences(cmd, response.References)
		return nil
	})
}

func streamQuery(cmd *cobra.Command, a app, req model.QueryRequest) error {
	stream, err := a.QueryStream(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var references []model.Reference
	for event, err := range stream {
		if err != nil {
			cmd.Println()
			return fmt.Errorf("stream failed: %w", err)
		}
		switch event.Type {
		case model.StreamEventMetadata:
			references = event.Metadata.References
		case model.StreamEventToken:
			cmd.Print(event.Token)
		}
	}
	cmd.Println()
	printReferences(cmd, references)
	return nil
}

func printReferences(cmd *cobra.Command, references []model.Reference) {
	if len(references) == 0 {
		return
	}
	heading := color.New(color.Bold)
	cmd.Println()
	cmd.Println(heading.Sprint("References:"))
	for i, ref := range references {
		label := ref.ControlID
		if label == "" {
			label = ref.ChunkID
		}
		cmd.Printf("  [%d] %s (%s)\n", i+1, label, ref.DocumentType)
	}
}
