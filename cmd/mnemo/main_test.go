package main

import (
	"testing"

	"github.com/basket/mnemo/internal/config"
	"github.com/basket/mnemo/internal/graphmem"
)

func TestBuildGraphAdapter_DefaultsToMemoryAdapter(t *testing.T) {
	adapter := buildGraphAdapter(config.Config{})
	if _, ok := adapter.(*graphmem.MemoryAdapter); !ok {
		t.Fatalf("expected *graphmem.MemoryAdapter, got %T", adapter)
	}
}

func TestBuildGraphAdapter_UsesRedisWhenBaseURLSet(t *testing.T) {
	adapter := buildGraphAdapter(config.Config{Graphiti: config.Graphiti{BaseURL: "localhost:6379"}})
	if _, ok := adapter.(*graphmem.RedisAdapter); !ok {
		t.Fatalf("expected *graphmem.RedisAdapter, got %T", adapter)
	}
}

func TestDefaultHomeDir_NonEmpty(t *testing.T) {
	if defaultHomeDir() == "" {
		t.Fatalf("expected a non-empty default home dir")
	}
}
