package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Orelexa/gardrob/internal/application/usecases"
	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/infrastructure/external"
	"github.com/Orelexa/gardrob/internal/infrastructure/services"
	"github.com/Orelexa/gardrob/internal/infrastructure/storage"
)

var importExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

func newImportCommand(configPath *string) *cobra.Command {
	var (
		userID   string
		category string
		classify bool
	)

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Add every image in a directory to a user's wardrobe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, closeDB, err := openStore(ctx, cfg.Database, true)
			if err != nil {
				return err
			}
			defer closeDB()

			blobs, err := storage.NewFilesystemBlobStore(cfg.Blobs.Dir, cfg.Blobs.PublicURL)
			if err != nil {
				return err
			}

			var classifier repositories.GarmentClassifier
			if classify {
				if err := cfg.RequireAI(); err != nil {
					return err
				}
				pool := services.NewClientPoolService(repositories.AIClientConfig{
					ProjectID:    cfg.ProjectID,
					Location:     cfg.Location,
					GeminiAPIKey: cfg.GeminiAPIKey,
				})
				defer pool.Close()
				classifier = external.NewGeminiGarmentClassifier(pool.GenAIPool(), cfg.ClassifierModel, entities.GarmentCategories)
			}

			wardrobe := usecases.NewWardrobeUseCase(db, blobs, classifier, logger)

			dir := args[0]
			files, err := os.ReadDir(dir)
			if err != nil {
				return err
			}

			var imported, failed int
			for _, file := range files {
				ext := strings.ToLower(filepath.Ext(file.Name()))
				if file.IsDir() || !slices.Contains(importExtensions, ext) {
					continue
				}

				data, err := os.ReadFile(filepath.Join(dir, file.Name()))
				if err != nil {
					return err
				}

				item, err := wardrobe.Create(ctx, usecases.CreateGarmentInput{
					UserID:    userID,
					Name:      strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
					Category:  category,
					ImageData: data,
				})
				if err != nil {
					logger.Warn("skipping file", "file", file.Name(), "error", err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", item.ID(), item.Garment().Category(), file.Name())
				imported++
			}

			logger.Info("import finished", "user", userID, "imported", imported, "failed", failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner of the imported garments")
	cmd.Flags().StringVar(&category, "category", "", "category for every garment (blank to leave uncategorized)")
	cmd.Flags().BoolVar(&classify, "classify", false, "suggest a category for each garment with Gemini")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
