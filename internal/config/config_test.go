package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/labi-le/clipsync/internal/config"
	flag "github.com/spf13/pflag"
)

type values struct {
	Port       int
	Greedy     bool
	Timeout    time.Duration
	Selections []string
	Secret     string
}

func flags(v *values) *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.IntVarP(&v.Port, "port", "p", 7000, "")
	fs.BoolVar(&v.Greedy, "greedy", false, "")
	fs.DurationVar(&v.Timeout, "remote_timeout", 5*time.Second, "")
	fs.StringSliceVar(&v.Selections, "selections", []string{"CLIPBOARD"}, "")
	fs.StringVar(&v.Secret, "secret", "", "")
	return fs
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMerge(t *testing.T) {
	toml := write(t, "clipsync.toml", `
port = 7100
greedy = true
remote_timeout = "2s"
selections = ["CLIPBOARD", "PRIMARY"]
secret = "from-file"
`)

	tests := []struct {
		name string
		args []string
		env  map[string]string
		want values
	}{
		{
			name: "file overrides defaults",
			want: values{Port: 7100, Greedy: true, Timeout: 2 * time.Second, Selections: []string{"CLIPBOARD", "PRIMARY"}, Secret: "from-file"},
		},
		{
			name: "env overrides file",
			env:  map[string]string{"CLIPSYNC_SECRET": "from-env", "CLIPSYNC_PORT": "7200"},
			want: values{Port: 7200, Greedy: true, Timeout: 2 * time.Second, Selections: []string{"CLIPBOARD", "PRIMARY"}, Secret: "from-env"},
		},
		{
			name: "flags override everything",
			args: []string{"--port", "7300", "--selections", "PRIMARY"},
			env:  map[string]string{"CLIPSYNC_PORT": "7200"},
			want: values{Port: 7300, Greedy: true, Timeout: 2 * time.Second, Selections: []string{"PRIMARY"}, Secret: "from-file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var got values
			fs := flags(&got)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			used, err := config.Merge(fs, toml)
			if err != nil {
				t.Fatal(err)
			}
			if used != toml {
				t.Errorf("expected config %s, got %s", toml, used)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_NoFileKeepsDefaults(t *testing.T) {
	var got values
	fs := flags(&got)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	used, err := config.Merge(fs, "", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if used != "" {
		t.Errorf("unexpected config %s", used)
	}

	want := values{Port: 7000, Timeout: 5 * time.Second, Selections: []string{"CLIPBOARD"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_InvalidValue(t *testing.T) {
	yaml := write(t, "clipsync.yaml", "port: many\n")

	var got values
	fs := flags(&got)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Merge(fs, yaml); !errors.Is(err, config.ErrFlag) {
		t.Fatalf("expected %v, got %v", config.ErrFlag, err)
	}
}

func TestMerge_MissingExplicitFile(t *testing.T) {
	fs := flags(new(values))
	if _, err := config.Merge(fs, filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("missing explicit config must fail")
	}
}
