package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

// StringArray 字符串数组，JSON 存储（照片、凭证文件等）
type StringArray []string

// Value 实现 driver.Valuer 接口
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (s *StringArray) Scan(value interface{}) error {
	*s = StringArray{}
	return scanJSON(value, s)
}

// IDSet 有序且去重的 ID 集合，JSON 数组存储
type IDSet []uint

// NewIDSet 按首次出现顺序去重，忽略 0
func NewIDSet(ids ...uint) IDSet {
	seen := make(map[uint]struct{}, len(ids))
	out := make(IDSet, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Contains 是否包含
func (s IDSet) Contains(id uint) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Equal 顺序与元素均相同
func (s IDSet) Equal(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Value 实现 driver.Valuer 接口
func (s IDSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(s))
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (s *IDSet) Scan(value interface{}) error {
	var raw []uint
	if err := scanJSON(value, &raw); err != nil {
		return err
	}
	*s = NewIDSet(raw...)
	return nil
}

// ItemSnapshot 合并时保留的订单项快照
type ItemSnapshot struct {
	OrderItemID uint   `json:"order_item_id"`
	Title       string `json:"title"`
	Variant     string `json:"variant"`
	Price       Money  `json:"price"`
	Quantity    int    `json:"quantity"`
}

// ItemSnapshots 订单项快照列表
type ItemSnapshots []ItemSnapshot

// Value 实现 driver.Valuer 接口
func (s ItemSnapshots) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ItemSnapshot(s))
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (s *ItemSnapshots) Scan(value interface{}) error {
	*s = ItemSnapshots{}
	return scanJSON(value, (*[]ItemSnapshot)(s))
}
