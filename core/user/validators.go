package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/janus/core"
	appfs "github.com/trezcool/janus/fs"
)

var (
	allGroupsTag  = "allgroups"
	allGroupsText = "Grupo inválido."

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("Esta senha é muito curta. Ela precisa conter pelo menos %d caracteres.", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "A senha não pode conter espaços."

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "Esta senha é inteiramente numérica."

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "A senha é muito parecida com os dados do usuário."

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "Esta senha é muito comum."

	commonPasswordsPath = "passwords/common-passwords.txt.gz"
	commonPasswords     []string
	commonPwdsInit      sync.Once
)

// passwordCheck validates a lone password against the attributes of its owner.
type passwordCheck struct {
	Password string `json:"password"`

	name  string
	email string
}

// InitValidators registers the user validations and their pt_BR messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allGroupsTag, allGroupsValidation)
	core.RegisterCustomTranslation(validate, translator, allGroupsTag, allGroupsText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{}, passwordCheck{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

func loadCommonPasswords() {
	file, err := appfs.FS.Open(commonPasswordsPath)
	if err != nil {
		return
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()
	if gzRdr, err := gzip.NewReader(file); err == nil {
		scanner := bufio.NewScanner(gzRdr)
		for scanner.Scan() {
			if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
				commonPasswords = append(commonPasswords, strings.ToLower(pwd))
			}
		}
	}
	sort.Strings(commonPasswords)
}

func isCommonPassword(pwd string) bool {
	commonPwdsInit.Do(loadCommonPasswords)
	lpwd := strings.ToLower(pwd)
	idx := sort.SearchStrings(commonPasswords, lpwd)
	return idx < len(commonPasswords) && commonPasswords[idx] == lpwd
}

// Custom Validators

// allGroupsValidation checks that provided user groups are all in AllGroups
func allGroupsValidation(fl validator.FieldLevel) bool {
	groups, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, group := range groups {
		var found bool
		for _, g := range AllGroups {
			if g == group {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// userStructValidation applies the password policy wherever a new password is provided.
func userStructValidation(sl validator.StructLevel) {
	switch data := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(data.Password, sl, data.FirstName+" "+data.LastName, data.Email)
	case UpdateUser:
		if data.Password != "" {
			validatePassword(data.Password, sl, data.name, data.Email)
		}
	case ResetUserPassword:
		validatePassword(data.Password, sl)
	case passwordCheck:
		validatePassword(data.Password, sl, data.name, data.email)
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no user attrs similarity
// - no common password
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	if pwd == "" {
		return // `required` reports it
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var digitCount int
	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range runes {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len(runes) {
		reportErr(pwdNotAllNumTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		candidates := []string{attr}
		if at := strings.IndexByte(attr, '@'); at > 0 {
			candidates = append(candidates, attr[:at])
		}
		for _, c := range candidates {
			if difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(c, "")).QuickRatio() >= pwdMaxSim {
				reportErr(pwdAttrSimTag)
				return
			}
		}
	}

	if isCommonPassword(pwd) {
		reportErr(pwdNoCommonTag)
	}
}
