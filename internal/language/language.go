// Package language maps recognition locales to the ISO 639-1 codes the
// transcription services accept.
package language

import (
	"fmt"
	"sort"
	"strings"
)

type Language struct {
	Code       string // ISO 639-1
	Name       string
	NativeName string
}

// Label is the name followed by the code, e.g. "German (de)".
func (l Language) Label() string {
	if l.Code == "" {
		return l.Name
	}
	return fmt.Sprintf("%s (%s)", l.Name, l.Code)
}

// Auto leaves language detection to the provider.
var Auto = Language{Name: "Auto-detect"}

// Whisper's supported languages.
var table = []Language{
	{"af", "Afrikaans", "Afrikaans"},
	{"ar", "Arabic", "العربية"},
	{"hy", "Armenian", "Հայերեն"},
	{"az", "Azerbaijani", "Azərbaycan"},
	{"be", "Belarusian", "Беларуская"},
	{"bs", "Bosnian", "Bosanski"},
	{"bg", "Bulgarian", "Български"},
	{"ca", "Catalan", "Català"},
	{"zh", "Chinese", "中文"},
	{"hr", "Croatian", "Hrvatski"},
	{"cs", "Czech", "Čeština"},
	{"da", "Danish", "Dansk"},
	{"nl", "Dutch", "Nederlands"},
	{"en", "English", "English"},
	{"et", "Estonian", "Eesti"},
	{"fi", "Finnish", "Suomi"},
	{"fr", "French", "Français"},
	{"gl", "Galician", "Galego"},
	{"de", "German", "Deutsch"},
	{"el", "Greek", "Ελληνικά"},
	{"he", "Hebrew", "עברית"},
	{"hi", "Hindi", "हिन्दी"},
	{"hu", "Hungarian", "Magyar"},
	{"is", "Icelandic", "Íslenska"},
	{"id", "Indonesian", "Bahasa Indonesia"},
	{"it", "Italian", "Italiano"},
	{"ja", "Japanese", "日本語"},
	{"kn", "Kannada", "ಕನ್ನಡ"},
	{"kk", "Kazakh", "Қазақ"},
	{"ko", "Korean", "한국어"},
	{"lv", "Latvian", "Latviešu"},
	{"lt", "Lithuanian", "Lietuvių"},
	{"mk", "Macedonian", "Македонски"},
	{"ms", "Malay", "Bahasa Melayu"},
	{"mr", "Marathi", "मराठी"},
	{"mi", "Maori", "Māori"},
	{"ne", "Nepali", "नेपाली"},
	{"no", "Norwegian", "Norsk"},
	{"fa", "Persian", "فارسی"},
	{"pl", "Polish", "Polski"},
	{"pt", "Portuguese", "Português"},
	{"ro", "Romanian", "Română"},
	{"ru", "Russian", "Русский"},
	{"sr", "Serbian", "Српски"},
	{"sk", "Slovak", "Slovenčina"},
	{"sl", "Slovenian", "Slovenščina"},
	{"es", "Spanish", "Español"},
	{"sw", "Swahili", "Kiswahili"},
	{"sv", "Swedish", "Svenska"},
	{"tl", "Tagalog", "Tagalog"},
	{"ta", "Tamil", "தமிழ்"},
	{"th", "Thai", "ไทย"},
	{"tr", "Turkish", "Türkçe"},
	{"uk", "Ukrainian", "Українська"},
	{"ur", "Urdu", "اردو"},
	{"vi", "Vietnamese", "Tiếng Việt"},
	{"cy", "Welsh", "Cymraeg"},
}

var byCode = func() map[string]Language {
	m := make(map[string]Language, len(table))
	for _, l := range table {
		m[l.Code] = l
	}
	return m
}()

// Normalize turns a locale such as "en-US", "pt_BR" or "DE" into its ISO 639-1
// base code. The empty string means auto-detect and is returned unchanged.
func Normalize(locale string) (string, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "", nil
	}
	base, _, _ := strings.Cut(strings.ReplaceAll(locale, "_", "-"), "-")
	base = strings.ToLower(base)
	if _, ok := byCode[base]; !ok {
		return "", fmt.Errorf("unsupported language %q", locale)
	}
	return base, nil
}

// Lookup returns the Language for a locale, or Auto and false when the locale
// is empty or unknown.
func Lookup(locale string) (Language, bool) {
	code, err := Normalize(locale)
	if err != nil || code == "" {
		return Auto, false
	}
	return byCode[code], true
}

// List returns every supported language sorted by English name.
func List() []Language {
	out := make([]Language, len(table))
	copy(out, table)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
