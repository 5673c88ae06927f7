package match

import (
	"sync"
	"testing"
)

func TestCompileReturnsPatternExactlyAsStored(t *testing.T) {
	c := NewCache()
	r, err := c.Compile("^firefox$")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r.String() != "^firefox$" {
		t.Errorf("compiled pattern = %q, want %q", r.String(), "^firefox$")
	}
}

func TestCompileCachesSameRegexpInstance(t *testing.T) {
	c := NewCache()
	r1, err := c.Compile("chromium")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	r2, err := c.Compile("chromium")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r1 != r2 {
		t.Error("Compile returned distinct instances for the same pattern")
	}
}

func TestCompileRejectsInvalidPattern(t *testing.T) {
	c := NewCache()
	if _, err := c.Compile("("); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestMatchEmptyPatternListsNeverMatch(t *testing.T) {
	c := NewCache()
	ok, err := c.Match(Matcher{}, "firefox", "Mozilla Firefox")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if ok {
		t.Error("empty pattern lists should never match")
	}
}

func TestMatchORsAppIDAndTitle(t *testing.T) {
	c := NewCache()
	m := Matcher{AppIDPatterns: []string{"^firefox$"}, TitlePatterns: []string{"GitHub"}}

	ok, err := c.Match(m, "firefox", "about:blank")
	if err != nil || !ok {
		t.Errorf("expected app_id match, got ok=%v err=%v", ok, err)
	}

	ok, err = c.Match(m, "chromium", "My PR - GitHub")
	if err != nil || !ok {
		t.Errorf("expected title match, got ok=%v err=%v", ok, err)
	}

	ok, err = c.Match(m, "chromium", "about:blank")
	if err != nil || ok {
		t.Errorf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestClearDropsAllEntries(t *testing.T) {
	c := NewCache()
	m := Matcher{AppIDPatterns: []string{"firefox"}}
	if _, err := c.get(m); err != nil {
		t.Fatalf("get: %v", err)
	}
	c.Clear()
	if len(c.entries) != 0 || len(c.pattern) != 0 {
		t.Error("Clear did not empty the cache")
	}
}

func TestCacheIsSafeForConcurrentUse(t *testing.T) {
	c := NewCache()
	m := Matcher{AppIDPatterns: []string{"^firefox$", "^chromium$"}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Match(m, "firefox", "")
		}()
	}
	wg.Wait()
}

func must(r interface {
}, err error) interface{} {
	if err != nil {
		panic(err)
	}
	return r
}

func must2(ok bool, err error) (bool, error) {
	return ok, err
}
