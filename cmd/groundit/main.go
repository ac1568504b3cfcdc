// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/groundit"
	"github.com/poiesic/groundit/ai"
	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/retrieve"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "groundit",
		Usage: "Document vectorization and retrieval for grounded conversations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Upload a document and vectorize it",
				ArgsUsage: "<file>",
				Action:    addCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Owner of the document",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Document name (defaults to the file path)",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for vectorization to finish",
						Value: true,
					},
					&cli.DurationFlag{
						Name:  "wait-timeout",
						Usage: "Maximum time to wait for vectorization",
						Value: 5 * time.Minute,
					},
				),
			},
			{
				Name:   "list",
				Usage:  "List stored documents with their processing state",
				Action: listCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "List only this user's documents",
					},
				),
			},
			{
				Name:      "status",
				Usage:     "Show one document's processing state",
				ArgsUsage: "<document-id>",
				Action:    statusCommand,
				Flags:     serviceFlags(),
			},
			{
				Name:      "revectorize",
				Usage:     "Force re-embedding of a document",
				ArgsUsage: "<document-id>",
				Action:    revectorizeCommand,
				Flags: append(serviceFlags(),
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for vectorization to finish",
						Value: true,
					},
					&cli.DurationFlag{
						Name:  "wait-timeout",
						Usage: "Maximum time to wait for vectorization",
						Value: 5 * time.Minute,
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Retrieve the most relevant chunks for a question",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: append(serviceFlags(),
					&cli.Uint64SliceFlag{
						Name:     "doc",
						Usage:    "Document ID to search (repeatable)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to return",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "partial",
						Usage: "Allow results while some documents are still vectorizing",
					},
				),
			},
			{
				Name:      "delete",
				Usage:     "Delete a document and its chunks",
				ArgsUsage: "<document-id>",
				Action:    deleteCommand,
				Flags:     serviceFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// serviceFlags returns the flags shared by every command that opens the
// document store.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.IntFlag{
			Name:  "chunk-chars",
			Usage: "Per-chunk character limit",
			Value: groundit.DefaultChunkChars,
		},
	}
}

func openService(c *cli.Context) (*groundit.Service, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	svc, err := groundit.NewService(c.String("db"),
		groundit.WithAIConfig(aiConfig),
		groundit.WithChunkChars(c.Int("chunk-chars")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

func addCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	filePath := c.Args().First()

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	name := c.String("name")
	if name == "" {
		name = filePath
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	doc, err := svc.UploadDocument(ctx, c.String("user"), name, string(content))
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Printf("Document %d uploaded (%s)\n", doc.Id, doc.Name)

	if !c.Bool("wait") {
		return nil
	}
	final, err := waitForDocument(ctx, svc, doc.Id, c.Duration("wait-timeout"))
	if err != nil {
		return err
	}
	printDocument(final)
	return nil
}

func listCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	var docs []*core.Document
	if userId := c.String("user"); userId != "" {
		docs, err = svc.ListUserDocuments(context.Background(), userId)
	} else {
		docs, err = svc.ListDocuments(context.Background())
	}
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents stored")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%d\t%s\t%s\t%s\t%d/%d chunks\n",
			doc.Id, doc.UserId, doc.Name, doc.Status, doc.VectorizedChunks, doc.TotalChunks)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	id, err := documentIDArg(c)
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	doc, err := svc.Status(context.Background(), id)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	printDocument(doc)
	return nil
}

func revectorizeCommand(c *cli.Context) error {
	id, err := documentIDArg(c)
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	if err := svc.Vectorize(ctx, id, true); err != nil {
		return fmt.Errorf("revectorize failed: %w", err)
	}
	fmt.Printf("Document %d re-enqueued\n", id)

	if !c.Bool("wait") {
		return nil
	}
	final, err := waitForDocument(ctx, svc, id, c.Duration("wait-timeout"))
	if err != nil {
		return err
	}
	printDocument(final)
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one question argument")
	}
	question := c.Args().First()

	ids := make([]core.ID, 0, len(c.Uint64Slice("doc")))
	for _, raw := range c.Uint64Slice("doc") {
		ids = append(ids, core.ID(raw))
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	var opts []retrieve.QueryOption
	if c.Bool("partial") {
		opts = append(opts, retrieve.WithPartialResults())
	}

	results, err := svc.Retrieve(context.Background(), question, ids, c.Int("top-k"), opts...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching chunks")
		return nil
	}
	for _, result := range results {
		fmt.Printf("#%d score=%.4f document=%d chunk=%d\n%s\n\n",
			result.Rank, result.Score, result.DocumentId, result.Seq, result.Content)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := documentIDArg(c)
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DeleteDocument(context.Background(), id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Printf("Document %d deleted\n", id)
	return nil
}

// documentIDArg parses the single positional document ID argument.
func documentIDArg(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one document-id argument")
	}
	raw, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document ID %q: %w", c.Args().First(), err)
	}
	return core.ID(raw), nil
}

// waitForDocument polls until the document reaches a terminal status.
func waitForDocument(ctx context.Context, svc *groundit.Service, id core.ID, timeout time.Duration) (*core.Document, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		doc, err := svc.Status(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("status failed: %w", err)
		}
		if doc.Status == core.StatusCompleted || doc.Status == core.StatusFailed {
			return doc, nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return nil, fmt.Errorf("timed out waiting for document %d", id)
}

func printDocument(doc *core.Document) {
	fmt.Printf("Document %d (%s)\n", doc.Id, doc.Name)
	fmt.Printf("  Owner:   %s\n", doc.UserId)
	fmt.Printf("  Status:  %s\n", doc.Status)
	fmt.Printf("  Chunks:  %d/%d vectorized\n", doc.VectorizedChunks, doc.TotalChunks)
	if doc.FailReason != "" {
		fmt.Printf("  Reason:  %s\n", doc.FailReason)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
