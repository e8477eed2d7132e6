package lang

import (
	"github.com/smacker/go-tree-sitter/java"
)

func init() {
	Languages["java"] = &Language{
		Name: "java",
		lang: java.GetLanguage(),
	}
}
