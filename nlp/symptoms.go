package nlp

import (
	"regexp"
	"sort"
	"strings"
)

type symptom struct {
	name     string
	synonyms []string
}

// lexicon maps canonical symptom tags to the phrases that mention them.
var lexicon = []symptom{
	{"fever", []string{"fever", "feverish", "high temperature", "pyrexia"}},
	{"cough", []string{"cough", "coughing"}},
	{"headache", []string{"headache", "headaches", "head ache", "migraine"}},
	{"diarrhea", []string{"diarrhea", "diarrhoea", "loose stools"}},
	{"vomiting", []string{"vomiting", "vomit", "throwing up"}},
	{"nausea", []string{"nausea", "nauseous", "nauseated"}},
	{"rash", []string{"rash", "skin rash", "hives"}},
	{"fatigue", []string{"fatigue", "tiredness", "exhaustion", "exhausted"}},
	{"sore throat", []string{"sore throat", "throat pain"}},
	{"shortness of breath", []string{"shortness of breath", "short of breath", "difficulty breathing", "breathless"}},
	{"muscle pain", []string{"muscle pain", "muscle ache", "muscle aches", "myalgia", "body aches"}},
	{"joint pain", []string{"joint pain", "joint aches", "arthralgia"}},
	{"chills", []string{"chills", "shivering"}},
	{"runny nose", []string{"runny nose", "stuffy nose", "nasal congestion"}},
	{"abdominal pain", []string{"abdominal pain", "stomach ache", "stomachache", "stomach pain", "stomach cramps"}},
	{"loss of smell", []string{"loss of smell", "anosmia"}},
	{"loss of taste", []string{"loss of taste", "ageusia"}},
	{"conjunctivitis", []string{"conjunctivitis", "red eyes", "pink eye"}},
	{"jaundice", []string{"jaundice", "yellow skin", "yellowing eyes"}},
	{"bleeding", []string{"bleeding", "hemorrhage", "haemorrhage"}},
}

type matcher struct {
	name string
	re   *regexp.Regexp
}

var (
	matchers []matcher
	synonyms = map[string]string{}
)

func init() {
	for _, s := range lexicon {
		quoted := make([]string, len(s.synonyms))
		for i, syn := range s.synonyms {
			quoted[i] = regexp.QuoteMeta(syn)
			synonyms[syn] = s.name
		}
		matchers = append(matchers, matcher{
			name: s.name,
			re:   regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
}

// ExtractSymptoms returns the canonical symptoms mentioned in text, in order of
// first mention.
func ExtractSymptoms(text string) []string {
	type hit struct {
		name string
		at   int
	}
	var hits []hit
	for _, m := range matchers {
		if loc := m.re.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{name: m.name, at: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// Canonical maps a tag to its lexicon name. Unknown tags are lower-cased and trimmed.
func Canonical(tag string) string {
	tag = strings.Join(strings.Fields(strings.ToLower(tag)), " ")
	if name, ok := synonyms[tag]; ok {
		return name
	}
	return tag
}

// MergeSymptoms canonicalises and de-duplicates the lists, keeping first-seen order.
func MergeSymptoms(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, tag := range list {
			c := Canonical(tag)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
