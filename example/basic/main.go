package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/controlrag"
	"github.com/siherrmann/controlrag/config"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

var controls = []model.Control{
	{
		ID:         "AC-2",
		Name:       "Account Management",
		Text:       "Define and document the types of accounts allowed and specifically prohibited for use within the system. Assign account managers. Require approvals for requests to create accounts. Review accounts for compliance with account management requirements.",
		Discussion: "Examples of system account types include individual, shared, group, system, guest, emergency, developer and service.",
	},
	{
		ID:   "AC-17",
		Name: "Remote Access",
		Text: "Establish and document usage restrictions, configuration and connection requirements, and implementation guidance for each type of remote access allowed. Authorize each type of remote access to the system prior to allowing such connections.",
	},
	{
		ID:   "SC-7",
		Name: "Boundary Protection",
		Text: "Monitor and control communications at the external managed interfaces to the system and at key internal managed interfaces within the system.",
	},
}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Bedrock credentials come from the default AWS chain
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	c, err := controlrag.NewControlRag(ctx, dbConfig, cfg)
	if err != nil {
		log.Fatalf("Failed to create controlrag: %v", err)
	}
	defer c.Close()

	if err := c.UseDefaultEmbedder(); err != nil {
		log.Fatalf("Failed to set up embedder: %v", err)
	}
	if err := c.UseBedrockGenerator(ctx); err != nil {
		log.Fatalf("Failed to set up generator: %v", err)
	}

	fmt.Println("Ingesting controls...")
	inserted, err := c.IngestControls(ctx, controls)
	if err != nil {
		log.Fatalf("Failed to ingest controls: %v", err)
	}
	fmt.Printf("Inserted %d chunks\n", inserted)

	question := "What does AC-2 require?"
	fmt.Printf("\nQuerying: %s\n\n", question)

	stream, err := c.QueryStream(ctx, model.QueryRequest{Query: question})
	if err != nil {
		log.Fatalf("Failed to query: %v", err)
	}
	for event, err := range stream {
		if err != nil {
			log.Fatalf("Stream failed: %v", err)
		}
		switch event.Type {
		case model.StreamEventMetadata:
			for _, ref := range event.Metadata.References {
				fmt.Printf("Reference: %s (%s, %.2f)\n", ref.ControlID, ref.DocumentType, ref.Score)
			}
			fmt.Println()
		case model.StreamEventToken:
			fmt.Print(event.Token)
		}
	}

	fmt.Println("\n\nBasic example completed successfully!")
}
