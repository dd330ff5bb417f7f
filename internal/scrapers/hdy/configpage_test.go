package hdy

import (
	_ "embed"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/config_page.html
var configPage string

//go:embed testdata/config_named.html
var configNamedPage string

//go:embed testdata/config_empty.html
var configEmptyPage string

func TestParseConfigPage(t *testing.T) {
	details, ok := ParseConfigPage(mustDocument(t, configPage))
	require.True(t, ok)

	expected := ConfigDetails{
		Name: "香港 CN2 GIA 独立服务器",
		Fields: map[string]string{
			"节点id": "HK-01",
			"CPU":  "E5-2680v4 14核",
			"内存":   "16G",
			"系统盘":  "480G SSD",
			"带宽":   "20M CN2",
			"IP数量": "1",
		},
	}
	if diff := cmp.Diff(expected, details); diff != "" {
		t.Fatalf("unexpected details (-want +got):\n%s", diff)
	}

	require.Equal(t, []string{
		"名称: 香港 CN2 GIA 独立服务器",
		"节点id: HK-01",
		"CPU: E5-2680v4 14核",
		"内存: 16G",
		"系统盘: 480G SSD",
		"带宽: 20M CN2",
		"IP数量: 1",
	}, details.Lines())
}

func TestParseConfigPageNameFromClass(t *testing.T) {
	details, ok := ParseConfigPage(mustDocument(t, configNamedPage))
	require.True(t, ok)
	require.Equal(t, "美国 VPS 入门款", details.Name)
	require.Equal(t, map[string]string{
		"CPU":  "2 vCPU",
		"网络类型": "BGP",
	}, details.Fields)
}

func TestParseConfigPageWithoutContent(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{name: "missing os label", src: configEmptyPage},
		{name: "blank", src: ""},
		{name: "label only inside a sentence", src: `<p>请选择操作系统和CPU型号</p>`},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, ok := ParseConfigPage(mustDocument(t, test.src))
			require.False(t, ok)
		})
	}
}

func TestConfigDetailsLinesSkipsMissing(t *testing.T) {
	require.Empty(t, ConfigDetails{}.Lines())
	require.Equal(t,
		[]string{"带宽: 5M"},
		ConfigDetails{Fields: map[string]string{"带宽": "5M", "unknown": "x"}}.Lines(),
	)
}
