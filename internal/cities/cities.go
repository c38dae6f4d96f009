// 包 cities：固定城市注册表；运行期只读，决定点位存储分区与地理编码视野范围
package cities

// Coordinates：城市中心坐标（WGS84）
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds：城市包围盒，用于 Nominatim viewbox 约束
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// City：城市静态配置
// 背景：分区表名（Partition）由此决定，点位永远落在所属城市的独立表中
// 约束：注册表为编译期常量，新增城市需发版；禁用城市保留历史数据但拒绝新写入
type City struct {
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	State       string      `json:"state"`
	Center      Coordinates `json:"center"`
	Bounds      Bounds      `json:"bounds"`
	Enabled     bool        `json:"enabled"`
	Partition   string      `json:"-"`
	Description string      `json:"description,omitempty"`
}

var registry = []City{
	{
		Slug:      "jf",
		Name:      "Juiz de Fora",
		State:     "MG",
		Center:    Coordinates{Lat: -21.7642, Lng: -43.3496},
		Bounds:    Bounds{North: -21.64, South: -21.88, East: -43.25, West: -43.45},
		Enabled:   true,
		Partition: "pontos_jf",
	},
	{
		Slug:      "uba",
		Name:      "Ubá",
		State:     "MG",
		Center:    Coordinates{Lat: -21.1195, Lng: -42.9428},
		Bounds:    Bounds{North: -21.05, South: -21.19, East: -42.88, West: -43.01},
		Enabled:   true,
		Partition: "pontos_uba",
	},
}

// BySlug：按 slug 查找启用中的城市；未注册或已禁用返回 false
func BySlug(slug string) (City, bool) {
	for _, c := range registry {
		if c.Slug == slug && c.Enabled {
			return c, true
		}
	}
	return City{}, false
}

// Enabled：返回全部启用城市（注册顺序）
func Enabled() []City {
	out := make([]City, 0, len(registry))
	for _, c := range registry {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}
