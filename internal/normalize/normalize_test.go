package normalize

import (
	"sync"
	"testing"
)

func TestNormalize_Extended(t *testing.T) {
	n := New(PolicyExtended)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"plain", "صباح الخير", "صباح الخير"},
		{"trim and collapse", "  صباح   \t الخير  ", "صباح الخير"},
		{"harakat stripped", "السَّلَامُ عَلَيْكُمْ", "السلام عليكم"},
		{"tatweel stripped", "مـــرحـبـا", "مرحبا"},
		{"hamza alef folds", "أحمد إبراهيم آمال", "احمد ابراهيم امال"},
		{"ta marbuta folds", "مدرسة", "مدرسه"},
		{"alef maksura folds", "مستشفى", "مستشفي"},
		{"hamza on ya folds", "رئيس", "رييس"},
		{"hamza on waw folds", "مؤمن", "مومن"},
		{"superscript alef stripped", "هٰذا", "هذا"},
		{"lam alef ligature", "ﻻ", "لا"},
		{"latin lowercased", "Hello BOT", "hello bot"},
		{"command token", "  !TIME ", "!time"},
		{"mixed", "يا  BOT ساعدنـــي", "يا bot ساعدني"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_MinimalKeepsExtendedLetters(t *testing.T) {
	n := New(PolicyMinimal)

	tests := []struct {
		input string
		want  string
	}{
		{"أحمد", "احمد"},
		{"مدرسة", "مدرسه"},
		{"مستشفى", "مستشفى"},
		{"رئيس", "رئيس"},
		{"مؤمن", "مؤمن"},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

var idempotenceCorpus = []string{
	"",
	"   ",
	"صباح الخير",
	"السَّلَامُ عَلَيْكُمْ وَرَحْمَةُ اللَّهِ",
	"مـــرحـبـا  يا   أصدقاء",
	"إِنَّ مع العُسرِ يُسرًا",
	"مؤسسة الرئيس على المستشفى",
	"اۖٔ",
	"eۖ́",
	"Hello World",
	"ÀÉÎ ÕÜ",
	"ﻻﻷ",
	"a ً",
	"!Date",
	"كلمة ممنوع هنا",
	"🌅 صباح الخير 🌅",
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, policy := range []Policy{PolicyMinimal, PolicyExtended} {
		n := New(policy)
		for _, s := range idempotenceCorpus {
			once := n.Normalize(s)
			twice := n.Normalize(once)
			if once != twice {
				t.Errorf("%s: Normalize not idempotent for %q: %q then %q", policy, s, once, twice)
			}
		}
	}
}

func TestNormalize_ConcurrentDeterministic(t *testing.T) {
	n := New(PolicyExtended)
	want := make([]string, len(idempotenceCorpus))
	for i, s := range idempotenceCorpus {
		want[i] = n.Normalize(s)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 50; round++ {
				for i, s := range idempotenceCorpus {
					if got := n.Normalize(s); got != want[i] {
						t.Errorf("Normalize(%q) = %q, want %q", s, got, want[i])
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"", PolicyExtended, false},
		{"extended", PolicyExtended, false},
		{"MINIMAL", PolicyMinimal, false},
		{" minimal ", PolicyMinimal, false},
		{"aggressive", PolicyExtended, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
