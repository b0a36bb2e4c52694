// Package catalog はアイテムカタログ（ユニーク、セット、ルーン、ルーンワード）の
// 読み取り専用ルックアップを提供する。データはバイナリに埋め込まれる。
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data/*.json
var dataFS embed.FS

// カタログ種別。/items?types= の値として使われる。
const (
	TypeUniqueItems = "uniqueItems"
	TypeSetItems    = "setItems"
	TypeRunes       = "runes"
	TypeRunewords   = "runewords"
)

// ItemProp はアイテムのプロパティ。先頭が表示テンプレート、残りが変数。
type ItemProp []string

// UniqueItem はユニークアイテムを表す。
type UniqueItem struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Image     string     `json:"image"`
	Category  string     `json:"category"`
	Implicits []ItemProp `json:"implicits,omitempty"`
	Affixes   []ItemProp `json:"affixes"`
}

// SetItem はセットアイテムを表す。
type SetItem struct {
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Image       string              `json:"image"`
	Category    string              `json:"category"`
	Implicits   []ItemProp          `json:"implicits,omitempty"`
	Affixes     []ItemProp          `json:"affixes"`
	ItemBonuses map[string]ItemProp `json:"itemBonuses"`
	SetBonuses  []ItemProp          `json:"setBonuses"`
	SetItems    []string            `json:"setItems"`
}

// Rune はルーンを表す。Implicitsは装備種別ごとの効果。
type Rune struct {
	Name          string            `json:"name"`
	RequiredLevel int               `json:"requiredLevel"`
	Implicits     map[string]string `json:"implicits"`
}

// Runeword はルーンワードを表す。
type Runeword struct {
	Name      string     `json:"name"`
	Runes     []string   `json:"runes"`
	Type      string     `json:"type"`
	ItemTypes []string   `json:"itemTypes"`
	Sockets   int        `json:"sockets"`
	Implicits []ItemProp `json:"implicits,omitempty"`
	Affixes   []ItemProp `json:"affixes"`
}

// Items は種別ごとのカタログの部分集合。指定されなかった種別は省略される。
type Items struct {
	UniqueItems map[string]UniqueItem `json:"uniqueItems,omitempty"`
	SetItems    map[string]SetItem    `json:"setItems,omitempty"`
	Runes       map[string]Rune       `json:"runes,omitempty"`
	Runewords   map[string]Runeword   `json:"runewords,omitempty"`
}

// Catalog は読み取り専用のアイテムカタログ。生成後は変更されないため並行アクセスに安全。
type Catalog struct {
	uniqueItems map[string]UniqueItem
	setItems    map[string]SetItem
	runes       map[string]Rune
	runewords   map[string]Runeword
}

// Load は埋め込みデータからカタログを読み込む。
func Load() (*Catalog, error) {
	c := &Catalog{}
	files := []struct {
		name string
		dst  any
	}{
		{"data/unique_items.json", &c.uniqueItems},
		{"data/set_items.json", &c.setItems},
		{"data/runes.json", &c.runes},
		{"data/runewords.json", &c.runewords},
	}
	for _, f := range files {
		raw, err := dataFS.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
	}
	return c, nil
}

// MustLoad はLoadを呼び出し、失敗した場合はpanicする。埋め込みデータは起動前に確定しているため。
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Exists はitemKeyが追跡可能なアイテム（ユニーク、セット、ルーン、ルーンワード）かを返す。
func (c *Catalog) Exists(itemKey string) bool {
	if _, ok := c.Item(itemKey); ok {
		return true
	}
	_, ok := c.runewords[itemKey]
	return ok
}

// Item はユニーク、セット、ルーンの順にitemKeyを検索する。
func (c *Catalog) Item(itemKey string) (any, bool) {
	if item, ok := c.uniqueItems[itemKey]; ok {
		return item, true
	}
	if item, ok := c.setItems[itemKey]; ok {
		return item, true
	}
	if item, ok := c.runes[itemKey]; ok {
		return item, true
	}
	return nil, false
}

// ByTypes は指定された種別のカタログを返す。未知の種別は無視する。
func (c *Catalog) ByTypes(types []string) Items {
	var out Items
	for _, t := range types {
		switch t {
		case TypeUniqueItems:
			out.UniqueItems = c.uniqueItems
		case TypeSetItems:
			out.SetItems = c.setItems
		case TypeRunes:
			out.Runes = c.runes
		case TypeRunewords:
			out.Runewords = c.runewords
		}
	}
	return out
}

// Runewords は全ルーンワードを返す。
func (c *Catalog) Runewords() map[string]Runeword {
	return c.runewords
}

// Runeword はキーに一致するルーンワードを返す。
func (c *Catalog) Runeword(key string) (Runeword, bool) {
	rw, ok := c.runewords[key]
	return rw, ok
}
