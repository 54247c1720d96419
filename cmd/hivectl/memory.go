package main

import (
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/memory"
)

var (
	memContent    string
	memCollection string
	memConfidence float64
	memQuery      string
	memLimit      int
	memFTS        bool
)

var memoryCmd = &cobra.Command{
	Use:     "memory",
	GroupID: "data",
	Short:   "Store and search semantic memories",
}

var memoryStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Store a new memory with its embedding; fails if the embedder is unreachable",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		embedder, embErr := memory.NewOllamaEmbedder(cfg.EmbedderModel)
		var svc *memory.Service
		if embErr != nil {
			svc = memory.New(kernel.New(a), nil)
		} else {
			svc = memory.New(kernel.New(a), embedder)
		}
		id, err := svc.Store(rootCtx, cfg.ProjectKey, memory.StoreArgs{
			Content:    memContent,
			Collection: memCollection,
			Confidence: memConfidence,
		})
		if err != nil {
			fatal(err)
		}
		printResult(map[string]any{"id": id})
	},
}

var memoryFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Search memories by semantic similarity or full text",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		embedder, embErr := memory.NewOllamaEmbedder(cfg.EmbedderModel)
		var svc *memory.Service
		if embErr != nil {
			svc = memory.New(kernel.New(a), nil)
		} else {
			svc = memory.New(kernel.New(a), embedder)
		}
		results, err := svc.Find(rootCtx, cfg.ProjectKey, memory.FindArgs{
			Query:      memQuery,
			Limit:      memLimit,
			Collection: memCollection,
			FTS:        memFTS,
		})
		if err != nil {
			fatal(err)
		}
		printResult(results)
	},
}

func init() {
	memoryStoreCmd.Flags().StringVar(&memContent, "content", "", "memory content to store")
	memoryStoreCmd.Flags().StringVar(&memCollection, "collection", "", "collection name")
	memoryStoreCmd.Flags().Float64Var(&memConfidence, "confidence", 1.0, "initial confidence (0-1)")
	_ = memoryStoreCmd.MarkFlagRequired("content")

	memoryFindCmd.Flags().StringVar(&memQuery, "query", "", "search text")
	memoryFindCmd.Flags().StringVar(&memCollection, "collection", "", "restrict to this collection")
	memoryFindCmd.Flags().IntVar(&memLimit, "limit", 10, "max results")
	memoryFindCmd.Flags().BoolVar(&memFTS, "fts", false, "force full-text search instead of vector similarity")
	_ = memoryFindCmd.MarkFlagRequired("query")

	memoryCmd.AddCommand(memoryStoreCmd, memoryFindCmd)
	rootCmd.AddCommand(memoryCmd)
}
