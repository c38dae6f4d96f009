package points

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FieldError：单字段校验失败，Field 指向表单字段名
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	contactNameRe  = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s]*$`)
	contactPhoneRe = regexp.MustCompile(`^\(\d{2}\)\s\d{4,5}-\d{4}$`)
)

// Validate：逐字段校验候选点位并收集全部错误
// 背景：一次返回完整错误列表，前端可同时高亮所有非法字段；不在首个错误处短路
// 约束：跨字段规则固定顺序——先庇护所容量，后地址或坐标二选一；requireConsent 仅公共路径为真
func Validate(c Candidate, requireConsent bool) []FieldError {
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if c.Type != TypeCollection && c.Type != TypeShelter {
		add("type", "Tipo deve ser collection ou shelter")
	}

	name := strings.TrimSpace(c.Name)
	if utf8.RuneCountInString(name) < 3 {
		add("name", "Nome deve ter no mínimo 3 caracteres")
	} else if utf8.RuneCountInString(name) > 100 {
		add("name", "Nome deve ter no máximo 100 caracteres")
	}

	addr := strings.TrimSpace(c.Address)
	if addr != "" {
		if utf8.RuneCountInString(addr) < 10 {
			add("address", "Endereço deve ter no mínimo 10 caracteres")
		} else if utf8.RuneCountInString(addr) > 200 {
			add("address", "Endereço deve ter no máximo 200 caracteres")
		}
	}

	if utf8.RuneCountInString(c.Complement) > 200 {
		add("complement", "Complemento deve ter no máximo 200 caracteres")
	}
	if utf8.RuneCountInString(c.Hours) > 100 {
		add("hours", "Horários deve ter no máximo 100 caracteres")
	}

	if len(c.DonationKinds) < 1 {
		add("donationKinds", "Selecione pelo menos um tipo de doação")
	} else if len(c.DonationKinds) > 6 {
		add("donationKinds", "Selecione no máximo 6 tipos de doação")
	} else {
		seen := make(map[string]bool, len(c.DonationKinds))
		for _, k := range c.DonationKinds {
			if !isDonationKind(k) {
				add("donationKinds", "Tipo de doação inválido: "+k)
				break
			}
			if seen[k] {
				add("donationKinds", "Tipos de doação duplicados")
				break
			}
			seen[k] = true
		}
	}

	if c.ContactName != "" {
		if utf8.RuneCountInString(c.ContactName) > 100 {
			add("contactName", "Nome do responsável deve ter no máximo 100 caracteres")
		} else if !contactNameRe.MatchString(c.ContactName) {
			add("contactName", "Nome deve conter apenas letras")
		}
	}

	if c.ContactPhone != "" && !contactPhoneRe.MatchString(c.ContactPhone) {
		add("contactPhone", "Telefone inválido. Use o formato (XX) XXXXX-XXXX")
	}

	if c.Capacity != nil && *c.Capacity <= 0 {
		add("capacity", "Capacidade deve ser maior que zero")
	}

	if c.Lat != nil && (*c.Lat < -90 || *c.Lat > 90) {
		add("lat", "Latitude inválida")
	}
	if c.Lng != nil && (*c.Lng < -180 || *c.Lng > 180) {
		add("lng", "Longitude inválida")
	}
	if (c.Lat == nil) != (c.Lng == nil) {
		add("lat", "Latitude e longitude devem ser informadas juntas")
	}

	if strings.TrimSpace(c.CitySlug) == "" {
		add("citySlug", "Cidade é obrigatória")
	}

	if requireConsent && !c.Consent {
		add("consent", "Você deve concordar com o uso dos dados")
	}

	// 跨字段规则 (a)：庇护所必须携带容量（非正值已由上方通用检查拦截）
	if c.Type == TypeShelter && c.Capacity == nil {
		add("capacity", "Capacidade é obrigatória para abrigos")
	}
	// 跨字段规则 (b)：地址与坐标至少提供其一
	if addr == "" && (c.Lat == nil || c.Lng == nil) {
		add("address", "Forneça um endereço ou selecione a localização no mapa")
	}

	return errs
}

func isDonationKind(k string) bool {
	for _, v := range DonationKinds {
		if v == k {
			return true
		}
	}
	return false
}
