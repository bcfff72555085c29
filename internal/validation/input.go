package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinJobTitleLength       = 3
	MaxJobTitleLength       = 200
	MinJobDescriptionLength = 10
	MaxJobDescriptionLength = 5000
	MinCoverLetterLength    = 10
	MaxCoverLetterLength    = 2000
	MinReasonLength         = 5
	MaxReasonLength         = 2000
	MaxNotesLength          = 5000
	MinBudget               = 0.0
	MaxBudget               = 100000000.0 // 100 миллионов
	MaxWorkersPerJob        = 10
	CBULength               = 22
	MinAliasLength          = 6
	MaxAliasLength          = 20
	MaxURLLength            = 500
	MaxEvidenceCount        = 20
)

var (
	cbuRegex   = regexp.MustCompile(`^[0-9]{22}$`)
	dniRegex   = regexp.MustCompile(`^[0-9]{7,8}$`)
	aliasRegex = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateJobTitle проверяет заголовок задания.
func ValidateJobTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок задания обязателен")
	}

	title = strings.TrimSpace(title)

	if err := ValidateLength("заголовок задания", title, MinJobTitleLength, MaxJobTitleLength); err != nil {
		return err
	}

	return nil
}

// ValidateJobDescription проверяет описание задания.
func ValidateJobDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание задания обязательно")
	}

	description = strings.TrimSpace(description)

	if err := ValidateLength("описание задания", description, MinJobDescriptionLength, MaxJobDescriptionLength); err != nil {
		return err
	}

	return nil
}

// ValidateBudget проверяет бюджет задания.
func ValidateBudget(budget float64) error {
	if budget <= MinBudget {
		return fmt.Errorf("бюджет должен быть положительным")
	}
	if budget > MaxBudget {
		return fmt.Errorf("бюджет не может превышать %.0f", MaxBudget)
	}
	return nil
}

// ValidateMaxWorkers проверяет количество исполнителей задания.
func ValidateMaxWorkers(maxWorkers int) error {
	if maxWorkers < 1 {
		return fmt.Errorf("задание должно допускать хотя бы одного исполнителя")
	}
	if maxWorkers > MaxWorkersPerJob {
		return fmt.Errorf("количество исполнителей не может превышать %d", MaxWorkersPerJob)
	}
	return nil
}

// ValidateCoverLetter проверяет сопроводительное письмо отклика.
func ValidateCoverLetter(coverLetter string) error {
	if coverLetter == "" {
		return fmt.Errorf("сопроводительное письмо обязательно")
	}

	coverLetter = strings.TrimSpace(coverLetter)

	if err := ValidateLength("сопроводительное письмо", coverLetter, MinCoverLetterLength, MaxCoverLetterLength); err != nil {
		return err
	}

	return nil
}

// ValidateReason проверяет текст причины (спора, отмены, отклонения).
func ValidateReason(fieldName, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%s обязательна", fieldName)
	}

	reason = strings.TrimSpace(reason)

	if err := ValidateLength(fieldName, reason, MinReasonLength, MaxReasonLength); err != nil {
		return err
	}

	return nil
}

// ValidateCBU проверяет аргентинский банковский идентификатор CBU.
// CBU состоит ровно из 22 цифр.
func ValidateCBU(cbu *string) error {
	if cbu == nil || *cbu == "" {
		return nil
	}

	value := strings.TrimSpace(*cbu)
	if !cbuRegex.MatchString(value) {
		return fmt.Errorf("CBU должен состоять из %d цифр", CBULength)
	}

	return nil
}

// ValidateAccountAlias проверяет алиас банковского счёта.
func ValidateAccountAlias(alias *string) error {
	if alias == nil || *alias == "" {
		return nil
	}

	value := strings.TrimSpace(*alias)
	if utf8.RuneCountInString(value) < MinAliasLength || utf8.RuneCountInString(value) > MaxAliasLength {
		return fmt.Errorf("алиас счёта должен быть от %d до %d символов", MinAliasLength, MaxAliasLength)
	}

	if !aliasRegex.MatchString(value) {
		return fmt.Errorf("алиас счёта может содержать только буквы, цифры, точку и дефис")
	}

	return nil
}

// ValidateDNI проверяет аргентинский документ DNI.
func ValidateDNI(dni *string) error {
	if dni == nil || *dni == "" {
		return nil
	}

	value := strings.TrimSpace(*dni)
	if !dniRegex.MatchString(value) {
		return fmt.Errorf("DNI должен состоять из 7-8 цифр")
	}

	return nil
}

// ValidateURL проверяет внешнюю ссылку.
func ValidateURL(fieldName, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("%s не может быть пустой", fieldName)
	}

	if err := ValidateLength(fieldName, link, 0, MaxURLLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}

	return nil
}

// ValidateEvidence проверяет список ссылок на доказательства.
func ValidateEvidence(urls []string) error {
	if len(urls) > MaxEvidenceCount {
		return fmt.Errorf("количество доказательств не может превышать %d", MaxEvidenceCount)
	}

	for _, u := range urls {
		if err := ValidateURL("ссылка на доказательство", u); err != nil {
			return err
		}
	}

	return nil
}
