package repository

import (
	"reflect"
	"strings"
	"testing"
)

// TestParseIDList 测试聚合拼串结果解析
func TestParseIDList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []uint64
	}{
		{"空串", "", nil},
		{"单个ID", "42", []uint64{42}},
		{"多个ID", "1,2,3", []uint64{1, 2, 3}},
		{"带空白", " 1 , 2 ,3", []uint64{1, 2, 3}},
		{"跳过非法片段", "1,abc,3", []uint64{1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIDList(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseIDList(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestBulkUserQueriesExcludeDeleted 预热查询与按需路径口径一致：过滤软删除用户
func TestBulkUserQueriesExcludeDeleted(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"org_users预热查询", orgUsersBulkSQL("GROUP_CONCAT(DISTINCT uo.user_id)")},
		{"user_orgs预热查询", userOrgsBulkSQL("GROUP_CONCAT(DISTINCT uo.org_id)")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.sql, "JOIN users u") {
				t.Errorf("query must join users table:\n%s", tt.sql)
			}
			if !strings.Contains(tt.sql, "u.is_deleted = 0") {
				t.Errorf("query must exclude soft-deleted users:\n%s", tt.sql)
			}
		})
	}
}
