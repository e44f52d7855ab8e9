// Command migrate imports legacy obituary markdown files as wizard
// drafts. Each file may carry a small YAML front matter block naming
// the person; the body becomes the obituary text. Imported drafts land
// in the owner's dashboard ready to finish in the wizard.
package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/store"
	"github.com/evermore-app/evermore/internal/util"
)

type frontMatter struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Headline  string `yaml:"headline"`
	BirthDate string `yaml:"birth_date"`
	DeathDate string `yaml:"death_date"`
}

var frontMatterDelim = []byte("---\n")

// splitFrontMatter returns the parsed front matter (nil when absent)
// and the markdown body.
func splitFrontMatter(content []byte) (*frontMatter, []byte) {
	if !bytes.HasPrefix(content, frontMatterDelim) {
		return nil, content
	}
	rest := content[len(frontMatterDelim):]
	end := bytes.Index(rest, frontMatterDelim)
	if end < 0 {
		return nil, content
	}

	var fm frontMatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, content
	}
	return &fm, rest[end+len(frontMatterDelim):]
}

func main() {
	// Define command-line flags
	path := flag.String("path", "", "Path to the directory containing .md obituary files")
	ownerID := flag.String("owner-id", "", "Owner user ID for the imported drafts")
	dbPath := flag.String("db", "./evermore.db", "Path to the SQLite database")
	flag.Parse()

	// Validate required flags
	if *path == "" || *ownerID == "" {
		log.Fatal("Both --path and --owner-id flags are required")
	}

	// Initialize the SQLite database and ensure tables exist
	database := db.NewSQLite(*dbPath)
	if err := database.InitDB(); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer database.Close()

	drafts := store.NewDBDraftStore(database)

	// Read all files from the specified directory
	files, err := os.ReadDir(*path)
	if err != nil {
		log.Fatalf("Error reading directory %s: %v", *path, err)
	}

	// Process each .md file
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".md") {
			err := processFile(*path, file, drafts, model.UserID(*ownerID))
			if err != nil {
				log.Printf("Error processing file %s: %v", file.Name(), err)
				continue
			}
			log.Printf("Successfully imported draft from file: %s", file.Name())
		}
	}
}

// processFile imports a single .md file as a draft.
func processFile(dirPath string, file os.DirEntry, drafts store.DraftStore, owner model.UserID) error {
	filePath := filepath.Join(dirPath, file.Name())

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	fm, body := splitFrontMatter(raw)

	content := model.Content{
		Obituary: string(body),
	}
	if fm != nil {
		content.Identity.FirstName = fm.FirstName
		content.Identity.LastName = fm.LastName
		content.Headline = fm.Headline
		content.Identity.BirthDate = parseDate(fm.BirthDate)
		content.Identity.DeathDate = parseDate(fm.DeathDate)
	}
	if content.Identity.DisplayName() == "" {
		// Fall back to the file name, "rosa-lindqvist.md" style.
		name := strings.TrimSuffix(file.Name(), ".md")
		parts := strings.SplitN(strings.ReplaceAll(name, "-", " "), " ", 2)
		content.Identity.FirstName = titleCase(parts[0])
		if len(parts) > 1 {
			content.Identity.LastName = titleCase(parts[1])
		}
	}

	ctx := context.Background()
	draft, err := drafts.CreateDraft(ctx, owner)
	if err != nil {
		return err
	}

	// Identity and obituary are filled in, so mark those steps done.
	progress := model.NewProgress()
	progress.MarkCompleted(0)
	if content.Obituary != "" {
		progress.MarkCompleted(2)
	}

	return drafts.PatchDraft(ctx, draft.ID, store.DraftPatch{
		Content:  &content,
		Progress: &progress,
	})
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := util.ParseCivilDate(s)
	if err != nil {
		return nil
	}
	return &t
}
