package dialogue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/medchat/medchat/internal/domain/record"
)

// Intent classification is pure text matching, decoupled from state
// mutation. All matchers operate on the lower-cased message.

var greetingWords = []string{"hi", "hello", "hey", "start", "begin"}

func isGreeting(msg string) bool {
	for _, w := range greetingWords {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

type menuChoice int

const (
	menuNone menuChoice = iota
	menuManageHistory
	menuStartDiagnosis
	menuViewPast
)

var (
	menuManageRe   = regexp.MustCompile(`1|manage|history|profile`)
	menuDiagnoseRe = regexp.MustCompile(`2|symptom|diagnos|check`)
	menuViewRe     = regexp.MustCompile(`3|view|previous|past`)
)

// classifyMenu resolves a main-menu selection. Branch priority is
// manage-history, start-diagnosis, view-past: the first matching branch wins
// when input satisfies several patterns.
func classifyMenu(msg string) menuChoice {
	switch {
	case menuManageRe.MatchString(msg):
		return menuManageHistory
	case menuDiagnoseRe.MatchString(msg):
		return menuStartDiagnosis
	case menuViewRe.MatchString(msg):
		return menuViewPast
	default:
		return menuNone
	}
}

var digitsRe = regexp.MustCompile(`\d+`)

// parseAge extracts the first run of digits in the message. The second
// result is false when the message contains no digits at all; a digit run
// too large for an int still reports true so the caller rejects it as out of
// range rather than unreadable.
func parseAge(msg string) (int, bool) {
	run := digitsRe.FindString(msg)
	if run == "" {
		return 0, false
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return 0, true
	}
	return n, true
}

// parseSex matches "male"/"female" by substring. "female" is tested as its
// own keyword first: every message containing "female" also contains "male",
// so the checks must be independent, not mutually exclusive.
func parseSex(msg string) (string, bool) {
	if strings.Contains(msg, "female") {
		return "female", true
	}
	if strings.Contains(msg, "male") {
		return "male", true
	}
	return "", false
}

var completionWords = map[string]bool{
	"done":       true,
	"finished":   true,
	"that's all": true,
	"complete":   true,
}

func isCompletion(msg string) bool {
	return completionWords[msg]
}

var affirmativeWords = map[string]bool{
	"yes":  true,
	"y":    true,
	"sure": true,
	"save": true,
}

func isAffirmative(msg string) bool {
	return affirmativeWords[msg]
}

var selectionRe = regexp.MustCompile(`^\d+$`)

// parseSelection reads a bare positive integer. The second result is false
// for anything that is not purely digits.
func parseSelection(msg string) (int, bool) {
	if !selectionRe.MatchString(msg) {
		return 0, false
	}
	n, err := strconv.Atoi(msg)
	if err != nil {
		return 0, false
	}
	return n, true
}

var (
	historyAddRe    = regexp.MustCompile(`^add\s+(.+)$`)
	historyRemoveRe = regexp.MustCompile(`^remove\s+(.+)$`)
	historyExitRe   = regexp.MustCompile(`5|return|back|main`)

	historyChronicRe = regexp.MustCompile(`1|chronic|condition`)
	historyAllergyRe = regexp.MustCompile(`2|allerg`)
	historyMedsRe    = regexp.MustCompile(`3|medic`)
	historySurgeryRe = regexp.MustCompile(`4|surg`)
)

type historyOp int

const (
	historyOpNone historyOp = iota
	historyOpAdd
	historyOpRemove
)

// parseHistoryCommand recognizes "add <item>" / "remove <item>" and returns
// the trimmed item text.
func parseHistoryCommand(msg string) (historyOp, string) {
	if m := historyAddRe.FindStringSubmatch(msg); m != nil {
		return historyOpAdd, strings.TrimSpace(m[1])
	}
	if m := historyRemoveRe.FindStringSubmatch(msg); m != nil {
		return historyOpRemove, strings.TrimSpace(m[1])
	}
	return historyOpNone, ""
}

// classifyHistoryCategory resolves a category selection, in the menu's
// numbered order.
func classifyHistoryCategory(msg string) (record.Category, bool) {
	switch {
	case historyChronicRe.MatchString(msg):
		return record.CategoryChronicConditions, true
	case historyAllergyRe.MatchString(msg):
		return record.CategoryAllergies, true
	case historyMedsRe.MatchString(msg):
		return record.CategoryMedications, true
	case historySurgeryRe.MatchString(msg):
		return record.CategoryPreviousSurgeries, true
	default:
		return "", false
	}
}

func isHistoryExit(msg string) bool {
	return msg == "done" || historyExitRe.MatchString(msg)
}
