package store

import (
	"testing"

	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/notify"
	"github.com/campuslink/api/pkg/config"
)

func TestSelectPrefersRemoteWhenConfigured(t *testing.T) {
	cfg := config.APIConfig{
		AtlasBaseURL:    "https://data.example.com/app/v1",
		AtlasAPIKey:     "key",
		AtlasDataSource: "Cluster0",
		AtlasDatabase:   "student_community",
	}
	st := Select(cfg, kv.NewMemory(nil), notify.NewHub(), newTestLogger())
	if !st.Remote() {
		t.Fatalf("expected remote backend")
	}
}

func TestSelectFallsBackToLocal(t *testing.T) {
	for _, cfg := range []config.APIConfig{
		{},
		{AtlasBaseURL: "https://data.example.com"},
		{AtlasAPIKey: "key"},
	} {
		st := Select(cfg, kv.NewMemory(nil), notify.NewHub(), newTestLogger())
		if st.Remote() {
			t.Fatalf("expected local backend for config %+v", cfg)
		}
	}
}
