// Package model 定义了与数据库表对应的 Go 结构体。
package model

// 本文件中的结构与外部解析服务的 JSON 契约一一对应，
// 字段名保持 camelCase 以直接复用远端响应。

// 内容块类型常量。
const (
	BlockParagraph = "paragraph"
	BlockHeading   = "heading"
	BlockTable     = "table"
	BlockList      = "list"
	BlockCode      = "code"
	BlockImage     = "image"
	BlockCaption   = "caption"
	BlockFooter    = "footer"
	BlockHeader    = "header"
)

// 解析告警级别常量。
const (
	WarningSeverityWarning = "warning"
	WarningSeverityError   = "error"
)

// TableCell 表示表格中的一个单元格。
type TableCell struct {
	Content  string `json:"content"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	RowSpan  int    `json:"rowSpan,omitempty"`
	ColSpan  int    `json:"colSpan,omitempty"`
	IsHeader bool   `json:"isHeader,omitempty"`
}

// TableStructure 表示解析出的完整表格结构。
type TableStructure struct {
	Rows      int         `json:"rows"`
	Cols      int         `json:"cols"`
	Headers   []string    `json:"headers"`
	Cells     []TableCell `json:"cells"`
	Markdown  string      `json:"markdown"`
	HasHeader bool        `json:"hasHeader"`
}

// ImageMetadata 表示图片块的元信息。
type ImageMetadata struct {
	Src    string `json:"src,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ContentBlock 表示文档中的一个内容块。
// Position 是跨所有块严格递增的 0 起始排序键。
type ContentBlock struct {
	Type         string          `json:"type"`
	Content      string          `json:"content"`
	PageNumber   int             `json:"pageNumber,omitempty"`
	Position     int             `json:"position"`
	HeadingLevel int             `json:"headingLevel,omitempty"`
	ListType     string          `json:"listType,omitempty"`
	ListItems    []string        `json:"listItems,omitempty"`
	Table        *TableStructure `json:"table,omitempty"`
	CodeLanguage string          `json:"codeLanguage,omitempty"`
	Image        *ImageMetadata  `json:"image,omitempty"`
}

// OutlineItem 表示文档大纲树中的一个节点。
type OutlineItem struct {
	Title      string         `json:"title"`
	Level      int            `json:"level"`
	PageNumber int            `json:"pageNumber,omitempty"`
	Position   int            `json:"position"`
	Children   []*OutlineItem `json:"children,omitempty"`
}

// ParsingWarning 表示解析过程中的一条告警。
// 页级或块级的提取问题以告警形式记录，而不是让整次解析失败。
type ParsingWarning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	PageNumber int    `json:"pageNumber,omitempty"`
	Position   int    `json:"position,omitempty"`
	Severity   string `json:"severity"`
}

// ParseMetadata 表示一次解析的元数据。
type ParseMetadata struct {
	FileName          string  `json:"filename"`
	Format            string  `json:"format"`
	FileSize          int64   `json:"fileSize"`
	PageCount         int     `json:"pageCount"`
	Title             string  `json:"title,omitempty"`
	Author            string  `json:"author,omitempty"`
	ParsingDurationMs float64 `json:"parsingDurationMs"`
	Parser            string  `json:"parser"`
	ParserVersion     string  `json:"parserVersion,omitempty"`
}

// ParsedDocument 表示外部解析服务返回的结构化文档。
// Success=false 时文档不得进入分块与索引阶段。
type ParsedDocument struct {
	DocumentID string           `json:"documentId"`
	Metadata   ParseMetadata    `json:"metadata"`
	Blocks     []ContentBlock   `json:"blocks"`
	FullText   string           `json:"fullText"`
	Outline    []*OutlineItem   `json:"outline"`
	Warnings   []ParsingWarning `json:"warnings"`
	Success    bool             `json:"success"`
}
