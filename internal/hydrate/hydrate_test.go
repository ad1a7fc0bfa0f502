package hydrate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type storeSection struct {
	Name     string         `yaml:"name"`
	Endpoint string         `yaml:"endpoint"`
	Bucket   string         `yaml:"bucket"`
	Options  map[string]any `yaml:"options"`
}

func TestDecoderDecodesYAMLTags(t *testing.T) {
	decoder := NewDecoder[storeSection]()
	got, err := decoder.Decode(Context{Source: "forge", Section: "store"}, map[string]any{
		"name":     "memory",
		"endpoint": "https://store.example.org",
		"options":  map[string]any{"limit": 10},
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	want := storeSection{
		Name:     "memory",
		Endpoint: "https://store.example.org",
		Options:  map[string]any{"limit": 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded section mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderKnownFieldsRejectsUnknownKeys(t *testing.T) {
	decoder := NewDecoder(WithKnownFields[storeSection]())
	_, err := decoder.Decode(Context{Source: "forge", Section: "store"}, map[string]any{
		"name":   "memory",
		"bucket": "b",
		"extra":  true,
	})
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
	if !strings.Contains(err.Error(), "forge#store") {
		t.Fatalf("expected error to name the document, got %v", err)
	}
}

func TestDecoderHooks(t *testing.T) {
	payload := map[string]any{"name": "MEMORY"}
	decoder := NewDecoder(
		WithPreHook[storeSection](func(_ Context, doc map[string]any) (map[string]any, error) {
			doc["name"] = strings.ToLower(doc["name"].(string))
			return doc, nil
		}),
		WithPostHook(func(_ Context, section *storeSection) error {
			if section.Bucket == "" {
				section.Bucket = "default"
			}
			return nil
		}),
	)

	got, err := decoder.Decode(Context{Source: "forge"}, payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Name != "memory" || got.Bucket != "default" {
		t.Fatalf("hooks not applied: %+v", got)
	}
	if payload["name"] != "MEMORY" {
		t.Fatalf("pre-hook mutated the caller payload")
	}
}

func TestDecoderPostHookError(t *testing.T) {
	boom := errors.New("boom")
	decoder := NewDecoder(WithPostHook(func(Context, *storeSection) error { return boom }))
	if _, err := decoder.Decode(Context{Source: "forge"}, map[string]any{}); !errors.Is(err, boom) {
		t.Fatalf("expected post-hook error, got %v", err)
	}
}

func TestDecoderNilPayload(t *testing.T) {
	decoder := NewDecoder[storeSection]()
	if _, err := decoder.Decode(Context{Source: "forge"}, nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestDecoderCustomDecoder(t *testing.T) {
	decoder := NewDecoder(WithCustomDecoder(func(_ Context, doc map[string]any) (storeSection, error) {
		return storeSection{Name: "custom:" + doc["name"].(string)}, nil
	}))
	got, err := decoder.Decode(Context{Source: "forge"}, map[string]any{"name": "sqlite"})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Name != "custom:sqlite" {
		t.Fatalf("custom decoder not used: %+v", got)
	}
}
