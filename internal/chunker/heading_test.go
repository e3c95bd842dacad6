package chunker

import "testing"

func TestClassifyHeading(t *testing.T) {
	for _, tc := range []struct {
		line string
		want HeadingRule
	}{
		{line: "[标题1] 用户登录", want: RuleMarker},
		{line: "  [标题1] indented marker", want: RuleNone},
		{line: "第3章 支付流程", want: RuleNumbered},
		{line: "第12节 退款", want: RuleNumbered},
		{line: "三、权限管理", want: RuleNumbered},
		{line: "十二.报表", want: RuleNumbered},
		{line: "4. Export", want: RuleNumbered},
		{line: "  7、导出功能", want: RuleNumbered},
		{line: "## Login flow", want: RuleMarkdown},
		{line: "####### too deep", want: RuleNone},
		{line: "#hashtag", want: RuleNone},
		{line: "Acceptance Criteria: the user can log in", want: RuleLatinLabel},
		{line: "Notes：", want: RuleLatinLabel},
		{line: "验收标准：", want: RuleShortColon},
		{line: "the following applies:", want: RuleShortColon},
		{line: "用户在登录页面输入手机号和验证码之后点击登录按钮，系统校验验证码并跳转到首页，同时记录登录日志和设备信息，便于后续审计：", want: RuleNone},
		{line: "plain body text without a label", want: RuleNone},
		{line: "", want: RuleNone},
	} {
		if got := ClassifyHeading(tc.line); got != tc.want {
			t.Errorf("ClassifyHeading(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestIsHeading(t *testing.T) {
	if !IsHeading("# Title") {
		t.Fatal("expected markdown header to be a heading")
	}
	if IsHeading("body") {
		t.Fatal("expected body line not to be a heading")
	}
}
