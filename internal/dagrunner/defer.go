package dagrunner

import (
	"fmt"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	deferParserOnce sync.Once
	deferParser     *when.Parser
)

func parser() *when.Parser {
	deferParserOnce.Do(func() {
		w := when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)
		deferParser = w
	})
	return deferParser
}

// ParseDeferUntil resolves a free-text time expression ("tomorrow at
// 9am", "in 3 hours") into an epoch-seconds ExecutionSpec.DeferUntil
// value, relative to now. Supplements the `issues create`/`update` CLI
// commands (SPEC_FULL §12); not part of the core readiness predicate,
// which only ever consumes the resolved timestamp.
func ParseDeferUntil(text string, now time.Time) (int64, error) {
	result, err := parser().Parse(text, now)
	if err != nil {
		return 0, fmt.Errorf("dagrunner: parse defer_until %q: %w", text, err)
	}
	if result == nil {
		return 0, fmt.Errorf("dagrunner: could not resolve a time from %q", text)
	}
	return result.Time.Unix(), nil
}
