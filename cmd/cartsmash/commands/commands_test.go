package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartsmash/resolver/config"
	"github.com/cartsmash/resolver/internal/app"
	"github.com/cartsmash/resolver/internal/domain"
)

type fakeCatalog struct{}

func (fakeCatalog) Search(ctx context.Context, query, retailerID string) (*domain.SearchResult, error) {
	if query != "apples" {
		return &domain.SearchResult{}, nil
	}
	return &domain.SearchResult{Products: []domain.CandidateProduct{
		{ID: "apl-1", Name: "Gala Apples", Price: domain.Float(1.29), Availability: domain.AvailabilityInStock},
	}}, nil
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useFakeApp(t *testing.T) {
	t.Helper()
	original := buildApp
	buildApp = func(ctx context.Context) (*app.App, error) {
		cfg := &config.Config{
			Catalog: config.CatalogConfig{BaseURL: "https://catalog.test", Timeout: time.Second},
			Cache:   config.CacheConfig{Type: "memory"},
		}
		return app.Build(ctx, cfg, zerolog.Nop(), app.WithCatalog(fakeCatalog{}))
	}
	t.Cleanup(func() { buildApp = original })
}

func TestParseCommand(t *testing.T) {
	t.Run("parses an embedded weight", func(t *testing.T) {
		out, err := execute(t, "", "parse", "2 lbs chicken breast")
		require.NoError(t, err)

		var parsed domain.ParsedItemDetails
		require.NoError(t, json.Unmarshal([]byte(out), &parsed))
		assert.Equal(t, "chicken breast", parsed.CleanName)
		assert.Equal(t, "pound", parsed.Unit)
		assert.Equal(t, 2.0, parsed.Measurement)
		assert.Equal(t, 1.0, parsed.Quantity)
	})

	t.Run("joins multiple args and honours flags", func(t *testing.T) {
		out, err := execute(t, "", "parse", "ripe", "bananas", "--quantity", "6", "--unit", "each")
		require.NoError(t, err)

		var parsed domain.ParsedItemDetails
		require.NoError(t, json.Unmarshal([]byte(out), &parsed))
		assert.Equal(t, "ripe bananas", parsed.CleanName)
		assert.Equal(t, 6.0, parsed.Quantity)
		assert.Equal(t, "each", parsed.Unit)
	})

	t.Run("requires a line", func(t *testing.T) {
		_, err := execute(t, "", "parse")
		assert.Error(t, err)
	})
}

func TestResolveCommand(t *testing.T) {
	t.Run("resolves items from a file", func(t *testing.T) {
		useFakeApp(t)

		path := filepath.Join(t.TempDir(), "list.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"name":"apples","quantity":3},{"name":"kumquat paste"}]`), 0644))

		out, err := execute(t, "", "resolve", "--file", path, "--retailer", "kroger")
		require.NoError(t, err)

		var batch domain.BatchResult
		require.NoError(t, json.Unmarshal([]byte(out), &batch))
		assert.Equal(t, 2, batch.Stats.Total)
		assert.Equal(t, "50.0%", batch.Stats.ResolutionRate)
		require.Len(t, batch.Resolved, 1)
		assert.Equal(t, "apl-1", batch.Resolved[0].ResolvedDetails.ProductID)
		assert.Equal(t, "kroger", batch.Resolved[0].VendorSpecific.RetailerID)
	})

	t.Run("reads stdin", func(t *testing.T) {
		useFakeApp(t)

		out, err := execute(t, `[{"name":"apples"}]`, "resolve", "--file", "-")
		require.NoError(t, err)
		assert.Contains(t, out, `"resolutionRate": "100.0%"`)
	})

	t.Run("rejects a non-array file", func(t *testing.T) {
		useFakeApp(t)

		_, err := execute(t, `{"name":"apples"}`, "resolve", "--file", "-")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("rejects an empty list", func(t *testing.T) {
		useFakeApp(t)

		_, err := execute(t, `[]`, "resolve", "--file", "-")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("requires the file flag", func(t *testing.T) {
		_, err := execute(t, "", "resolve")
		assert.Error(t, err)
	})
}
