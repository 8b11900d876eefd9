package tools

import "testing"

func TestValidateWritePathRefusesSensitiveFile(t *testing.T) {
	// Scenario 6: write_file(path=".env", ...) must be refused regardless
	// of working directory, and the error must name it as sensitive.
	if _, err := ValidateWritePath("/tmp/project", ".env"); err == nil {
		t.Fatal("expected .env to be refused")
	} else if _, ok := err.(*PathSecurityError); !ok {
		t.Fatalf("expected a *PathSecurityError, got %T: %v", err, err)
	}
}

func TestValidateWritePathAllowsEnvExample(t *testing.T) {
	if _, err := ValidateWritePath("/tmp/project", ".env.example"); err != nil {
		t.Fatalf("expected .env.example to be allowed, got %v", err)
	}
}

func TestValidateWritePathRefusesSSHDirectory(t *testing.T) {
	if _, err := ValidateWritePath("/tmp/project", "sub/.ssh/id_rsa"); err == nil {
		t.Fatal("expected a path under .ssh/ to be refused")
	}
}

func TestValidateWritePathRefusesEscapeAboveRoot(t *testing.T) {
	if _, err := ValidateWritePath("/tmp/project", "../../etc/passwd"); err == nil {
		t.Fatal("expected a path escaping the working directory to be refused")
	}
}

func TestValidateWritePathRefusesForbiddenRoot(t *testing.T) {
	if _, err := ValidateWritePath("/tmp/project", "/etc/hosts"); err == nil {
		t.Fatal("expected an absolute path under a forbidden root to be refused")
	}
}

func TestValidateReadPathAllowsForbiddenRootButNotEscape(t *testing.T) {
	// Reads are confined to the working directory but not blocked from
	// system paths within it — only escapes are rejected.
	if _, err := ValidateReadPath("/tmp/project", "../outside.txt"); err == nil {
		t.Fatal("expected an escaping read path to be refused")
	}
	if _, err := ValidateReadPath("/tmp/project", "notes.txt"); err != nil {
		t.Fatalf("expected an ordinary in-root read to be allowed, got %v", err)
	}
	if _, err := ValidateReadPath("/", "/etc/hosts"); err != nil {
		t.Fatalf("expected a read under a forbidden root inside the working directory to be allowed, got %v", err)
	}
}

func TestBashDangerReadOnlyNeverConfirms(t *testing.T) {
	tests := []string{"git status", "ls -la", "cat README.md", "npm test"}
	for _, cmd := range tests {
		if dangerous, _ := BashDanger(cmd); dangerous {
			t.Errorf("expected %q to never require confirmation", cmd)
		}
	}
}

func TestBashDangerDestructiveAlwaysConfirms(t *testing.T) {
	tests := []string{"rm -rf build", "git push origin main", "mv a b", "echo hi > out.txt"}
	for _, cmd := range tests {
		dangerous, prompt := BashDanger(cmd)
		if !dangerous {
			t.Errorf("expected %q to require confirmation", cmd)
		}
		if prompt == "" {
			t.Errorf("expected a non-empty confirmation prompt for %q", cmd)
		}
	}
}

func TestBashDangerOrdinaryCommandRunsUnconfirmed(t *testing.T) {
	dangerous, _ := BashDanger("go build ./...")
	if dangerous {
		t.Fatal("expected an ordinary build command to run without confirmation")
	}
}

func TestIsReadOnlyCommandMatchesWholeWordPrefix(t *testing.T) {
	if !IsReadOnlyCommand("git status") {
		t.Fatal("expected exact prefix match to be read-only")
	}
	if IsReadOnlyCommand("gitstatusfoo") {
		t.Fatal("did not expect a non-word-boundary match to be read-only")
	}
}
