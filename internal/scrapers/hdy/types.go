package hdy

import (
	"fmt"
	"strings"
)

// Product is one promotional card on the activity page. The keys match the snapshot
// files written by earlier deployments, which decode them case-sensitively.
type Product struct {
	Name          string `json:"ServerName"`
	Price         string `json:"Price"`
	RenewalInfo   string `json:"RenewalInfo"`
	Purchasable   bool   `json:"IsPurchasable"`
	StatusMessage string `json:"StatusMessage"`
	Core          string `json:"Core"`
	Memory        string `json:"Memory"`
	SystemDisk    string `json:"SystemDisk"`
	Bandwidth     string `json:"Bandwidth"`
}

func (p Product) String() string {
	status := "不可购买"
	if p.Purchasable {
		status = "可购买"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "名称: %s\n", p.Name)
	fmt.Fprintf(&sb, "价格: %s (%s)\n", p.Price, p.RenewalInfo)
	fmt.Fprintf(&sb, "配置: %s | %s | %s | %s\n", p.Core, p.Memory, p.SystemDisk, p.Bandwidth)
	fmt.Fprintf(&sb, "状态: %s [%s]\n", status, p.StatusMessage)
	return sb.String()
}

const (
	LabelOS   = "操作系统"
	LabelName = "名称"
)

// ConfigLabels are the labels extracted from a configuration page, in display order.
var ConfigLabels = []string{
	"节点id",
	"CPU",
	"内存",
	"系统盘",
	"带宽",
	"网络类型",
	"IP数量",
	"数据盘",
}

// ConfigDetails is what could be read off a configuration page. Both fields may be empty.
type ConfigDetails struct {
	Name string
	// Fields is keyed by the entries of ConfigLabels.
	Fields map[string]string
}

// Lines renders the name and every present field as "label: value" in ConfigLabels order.
func (d ConfigDetails) Lines() []string {
	var lines []string
	if d.Name != "" {
		lines = append(lines, fmt.Sprintf("%s: %s", LabelName, d.Name))
	}
	for _, label := range ConfigLabels {
		value, ok := d.Fields[label]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, value))
	}
	return lines
}
