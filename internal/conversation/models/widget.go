package models

// WidgetType discriminates the structured payload attached to a message.
type WidgetType string

const (
	WidgetLinkPreview WidgetType = "link_preview"
	WidgetButtons     WidgetType = "buttons"
	WidgetSelect      WidgetType = "select"
	WidgetInputForm   WidgetType = "input_form"
	WidgetQuickInput  WidgetType = "quick_input"
	WidgetCarousel    WidgetType = "carousel"
	WidgetCSAT        WidgetType = "csat"
)

// Widget is the structured, interactive payload attached to an agent
// message. Exactly one of the kind-specific fields is set, matching Type.
type Widget struct {
	Type        WidgetType        `json:"type"`
	LinkPreview *LinkPreviewData  `json:"link_preview,omitempty"`
	Buttons     *ButtonsWidget    `json:"buttons,omitempty"`
	Select      *SelectWidget     `json:"select,omitempty"`
	InputForm   *InputFormWidget  `json:"input_form,omitempty"`
	QuickInput  *QuickInputWidget `json:"quick_input,omitempty"`
	Carousel    *CarouselWidget   `json:"carousel,omitempty"`
	CSAT        *CSATWidget       `json:"csat,omitempty"`
}

// LinkPreviewData carries og:* metadata for a URL in an agent message.
type LinkPreviewData struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
}

// ButtonOption is one choice in a buttons or carousel widget.
type ButtonOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ButtonsWidget renders tappable choices below the message.
type ButtonsWidget struct {
	Buttons         []ButtonOption `json:"buttons"`
	DisableComposer bool           `json:"disableComposer,omitempty"`
}

// SelectOption is one entry in a select widget's dropdown.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SelectWidget renders a dropdown plus a submit button.
type SelectWidget struct {
	Placeholder string         `json:"placeholder,omitempty"`
	ButtonLabel string         `json:"buttonLabel,omitempty"`
	Options     []SelectOption `json:"options"`
}

// FormField is one input in a form widget.
type FormField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// InputFormWidget renders a multi-field form.
type InputFormWidget struct {
	SubmitLabel     string      `json:"submitLabel,omitempty"`
	Fields          []FormField `json:"fields"`
	DisableComposer bool        `json:"disableComposer,omitempty"`
}

// QuickInputWidget renders a single inline input.
type QuickInputWidget struct {
	Placeholder     string `json:"placeholder,omitempty"`
	ButtonLabel     string `json:"buttonLabel,omitempty"`
	InputType       string `json:"inputType,omitempty"`
	DisableComposer bool   `json:"disableComposer,omitempty"`
}

// CarouselItem is one card in a carousel widget.
type CarouselItem struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Price       string         `json:"price,omitempty"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Buttons     []ButtonOption `json:"buttons,omitempty"`
}

// CarouselWidget renders a horizontally scrollable card list.
type CarouselWidget struct {
	Items []CarouselItem `json:"items"`
}

// CSATWidget renders the satisfaction survey prompt.
type CSATWidget struct {
	Question string `json:"question"`
}
