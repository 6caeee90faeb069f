package sampler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cwbudde/lklprofile/internal/opt"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestBestfitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.bestfit")
	p, _ := opt.NewParams([]string{"omega_b", "n_s"}, []float64{0.02237, 0.9649})

	if err := WriteBestfit(path, p); err != nil {
		t.Fatalf("WriteBestfit failed: %v", err)
	}
	got, err := ReadBestfit(path)
	if err != nil {
		t.Fatalf("ReadBestfit failed: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("Bestfit mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBestfitMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.bestfit")
	writeFile(t, path, "# a, b\n1.0\n")

	if _, err := ReadBestfit(path); err == nil {
		t.Fatal("Expected error for value count mismatch")
	}
}

func TestReadChains(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "run__1.txt"), "# comment\n2 5.0 1 10\n3 4.0 2 20 99\n")
	writeFile(t, filepath.Join(dir, "run__2.txt"), "1 4.5 3 30\n\n")

	paths, err := ChainFiles(dir, "run")
	if err != nil {
		t.Fatal(err)
	}
	summary, err := ReadChains(paths, []string{"a", "b"})
	if err != nil {
		t.Fatalf("ReadChains failed: %v", err)
	}

	if summary.Rows != 3 || summary.Steps != 6 {
		t.Errorf("Rows/Steps = %d/%d, expected 3/6", summary.Rows, summary.Steps)
	}
	if summary.Likelihood != 4.0 {
		t.Errorf("Likelihood = %g, expected 4.0", summary.Likelihood)
	}
	if diff := cmp.Diff([]float64{2, 20}, summary.Best.Values); diff != "" {
		t.Errorf("Best mismatch (-want +got):\n%s", diff)
	}
}

func TestReadChainsErrors(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.txt")
	writeFile(t, short, "1 2.0 3\n")
	if _, err := ReadChains([]string{short}, []string{"a", "b"}); err == nil {
		t.Error("Expected error for a short row")
	}

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "# nothing\n")
	if _, err := ReadChains([]string{empty}, []string{"a"}); err == nil {
		t.Error("Expected error when no rows exist")
	}

	bad := filepath.Join(dir, "bad.txt")
	writeFile(t, bad, "1 nan? 3\n")
	if _, err := ReadChains([]string{bad}, []string{"a"}); err == nil {
		t.Error("Expected error for an unparsable number")
	}
}

func TestLoadStartingPoint(t *testing.T) {
	t.Run("bestfit", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "lcdm.bestfit"), "# h, n_s\n0.67 0.96\n")

		p, err := LoadStartingPoint(dir, "lcdm")
		if err != nil {
			t.Fatalf("LoadStartingPoint failed: %v", err)
		}
		if v, _ := p.Get("n_s"); v != 0.96 {
			t.Errorf("n_s = %g, expected 0.96", v)
		}
	})

	t.Run("chains", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "lcdm.paramnames"), "h  h\nn_s*  n_s\n")
		writeFile(t, filepath.Join(dir, "lcdm_1.txt"), "1 3.0 0.70 0.95\n1 2.0 0.68 0.97\n")

		p, err := LoadStartingPoint(dir, "lcdm")
		if err != nil {
			t.Fatalf("LoadStartingPoint failed: %v", err)
		}
		if diff := cmp.Diff([]string{"h", "n_s"}, p.Names); diff != "" {
			t.Errorf("Names mismatch (-want +got):\n%s", diff)
		}
		if v, _ := p.Get("h"); v != 0.68 {
			t.Errorf("h = %g, expected 0.68", v)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		if _, err := LoadStartingPoint(t.TempDir(), "lcdm"); err == nil {
			t.Error("Expected error without bestfit or chains")
		}
	})
}
