// 包 points：点位领域模型、输入清洗与校验；公共提交与后台写入共用同一套约束
package points

import "time"

// 点位类型枚举
const (
	TypeCollection = "collection"
	TypeShelter    = "shelter"
)

// DonationKinds：捐赠物资固定词表；提交值必须全部落在其中
var DonationKinds = []string{"Clothes", "Food", "Water", "Hygiene", "Medicine", "Other"}

// Point：已落库的点位记录
// 约束：Version 从 1 起，后台每次更新严格 +1；仅作审计标记，不做并发前置校验
type Point struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Complement    string    `json:"complement,omitempty"`
	Hours         string    `json:"hours,omitempty"`
	DonationKinds []string  `json:"donationKinds"`
	ContactName   string    `json:"contactName,omitempty"`
	ContactPhone  string    `json:"contactPhone,omitempty"`
	Capacity      *int      `json:"capacity"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	CitySlug      string    `json:"citySlug"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Candidate：提交表单的未落库形态
// 背景：坐标可缺省，由地址经正向地理编码补全；Consent 仅公共路径强制
type Candidate struct {
	Type          string   `json:"type"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Complement    string   `json:"complement"`
	Hours         string   `json:"hours"`
	DonationKinds []string `json:"donationKinds"`
	ContactName   string   `json:"contactName"`
	ContactPhone  string   `json:"contactPhone"`
	Capacity      *int     `json:"capacity"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	CitySlug      string   `json:"citySlug"`
	Consent       bool     `json:"consent"`
}

// Sanitized：对候选数据的全部自由文本字段清洗（就地修改副本并返回）
// 约束：仅清洗文本，不触碰坐标与枚举；电话先清洗后统一格式化
func (c Candidate) Sanitized() Candidate {
	c.Name = Sanitize(c.Name)
	c.Address = Sanitize(c.Address)
	c.Complement = Sanitize(c.Complement)
	c.Hours = Sanitize(c.Hours)
	c.ContactName = Sanitize(c.ContactName)
	c.ContactPhone = FormatPhone(SanitizePhone(c.ContactPhone))
	return c
}
