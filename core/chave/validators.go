package chave

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/janus/core"
)

var (
	nsTag   = "ns"
	nsText  = "Favor confirmar a NS"
	nsRegex = regexp.MustCompile(`^\d{10}$`)

	coordenadaTag   = "coordenada"
	coordenadaText  = "Coordenada incorreta"
	coordenadaRegex = regexp.MustCompile(`^\d{6}:\d{7}$`)

	invalidChoiceText = "Selecione uma escolha válida."
)

// InitValidators registers the chave field validations and their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(nsTag, regexValidation(nsRegex))
	core.RegisterCustomTranslation(validate, translator, nsTag, nsText)

	_ = validate.RegisterValidation(coordenadaTag, regexValidation(coordenadaRegex))
	core.RegisterCustomTranslation(validate, translator, coordenadaTag, coordenadaText)
}

func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// ValidNS reports whether ns is a 10 digit service number.
func ValidNS(ns string) bool { return nsRegex.MatchString(ns) }

// ValidCoordenada reports whether c is a UTM coordinate like 123456:1234567.
func ValidCoordenada(c string) bool { return coordenadaRegex.MatchString(c) }
