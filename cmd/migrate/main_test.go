package main

import (
	"io/fs"
	"strings"
	"testing"

	appmigrations "github.com/wolfman30/studio-booking-platform/migrations"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		args    []string
		want    command
		wantErr bool
	}{
		{args: nil, want: command{name: "up"}},
		{args: []string{"up"}, want: command{name: "up"}},
		{args: []string{"version"}, want: command{name: "version"}},
		{args: []string{"down"}, want: command{name: "down", arg: 1}},
		{args: []string{"down", "2"}, want: command{name: "down", arg: 2}},
		{args: []string{"down", "0"}, wantErr: true},
		{args: []string{"force", "3"}, want: command{name: "force", arg: 3}},
		{args: []string{"force"}, wantErr: true},
		{args: []string{"force", "x"}, wantErr: true},
		{args: []string{"sideways"}, wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%v: expected error", tc.args)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unexpected error %v", tc.args, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%v: got %+v want %+v", tc.args, got, tc.want)
		}
	}
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	if err := run("", nil, logging.Discard()); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.Glob(appmigrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	ups, downs := 0, 0
	for _, name := range entries {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got %d up / %d down", ups, downs)
	}
}
