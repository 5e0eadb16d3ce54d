package submit

import (
	"regexp"
	"strings"

	"github.com/gridsub/gridsub/pkg/logger"
)

// defaultTemplate is the built-in submit descriptor. Tokens in braces are
// replaced at render time; any left unreplaced are stripped.
const defaultTemplate = `universe = vanilla
executable = {EXE_WRAPPER}
output = {STDOUT}
error = {STDERR}
log = {STDLOG}
request_cpus = {CPUS}
request_memory = {MEMORY}
request_disk = {DISK}
should_transfer_files = YES
when_to_transfer_output = ON_EXIT_OR_EVICT
transfer_output_files = ""
{OTHER_ARGS}
`

var leftoverTokenRE = regexp.MustCompile(`\{\w*\}`)

// stripLeftoverTokens removes any unreplaced template tokens, logging each
// one so a bad template does not fail silently.
func stripLeftoverTokens(contents string, log *logger.Logger) string {
	tokens := leftoverTokenRE.FindAllString(contents, -1)
	for _, tok := range tokens {
		log.Warn("removing leftover template token", "token", tok)
		contents = strings.ReplaceAll(contents, tok, "")
	}
	return contents
}
