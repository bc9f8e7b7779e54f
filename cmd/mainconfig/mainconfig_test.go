package mainconfig

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/agenda-agent/internal/config"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

func TestLoadAWSClientsSkipsUnconfigured(t *testing.T) {
	clients, err := LoadAWSClients(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clients.Archive != nil || clients.SES != nil {
		t.Fatalf("expected no clients without bucket or SES sender, got %+v", clients)
	}
}

func TestLoadAWSClientsBuildsArchiveWithStaticCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
		ArchiveBucket:       "agenda-complaints",
		SESFromEmail:        "alerts@agenda.test",
	}
	clients, err := LoadAWSClients(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clients.Archive.Enabled() {
		t.Fatalf("expected archive store to be enabled")
	}
	if clients.SES == nil {
		t.Fatalf("expected SES client")
	}
}
