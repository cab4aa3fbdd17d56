package chat

import (
	"strings"

	"github.com/hyperjump/chatdata/internal/models"
)

const assistantIntro = "You are a data analytics assistant that helps users analyze their data."

const visualizationGuide = "When appropriate, provide insights in the form of charts or tables.\n" +
	"Put at most one visualization in your answer, inside a fenced ```json block.\n" +
	"For charts, always use this exact format:\n" +
	"\n" +
	"```json\n" +
	"{\n" +
	"  \"chartType\": \"bar\",\n" +
	"  \"title\": \"Lowest Sales by Category\",\n" +
	"  \"xAxis\": \"category\",\n" +
	"  \"yAxis\": \"sales\",\n" +
	"  \"chartData\": [\n" +
	"    {\"category\": \"Watches\", \"sales\": 10000},\n" +
	"    {\"category\": \"Sunglasses\", \"sales\": 8000},\n" +
	"    {\"category\": \"Fitness Trackers\", \"sales\": 5000}\n" +
	"  ]\n" +
	"}\n" +
	"```\n" +
	"\n" +
	"chartType is one of bar, line, area or pie. To plot several values per row, add\n" +
	"\"series\": [\"key1\", \"key2\"] naming the row properties to draw.\n" +
	"For tables, use:\n" +
	"\n" +
	"```json\n" +
	"{\"tableData\": {\"headers\": [\"Product\", \"Units\"], \"rows\": [[\"Widget\", 3]]}}\n" +
	"```\n" +
	"\n" +
	"Remember to always include xAxis and yAxis properties, and ensure chartData array contains objects with consistent property names."

// Nudge is appended as a final user turn on every request.
const Nudge = "Please provide the JSON data for any charts or tables you mention in your response."

// SourceLine describes the data source the conversation is about.
func SourceLine(ds *models.DataSource) string {
	return "You're analyzing data from: " + ds.Name + " (" + string(ds.Type) + ")"
}

// SystemPrompt builds the system instruction. ds may be nil.
func SystemPrompt(ds *models.DataSource) string {
	var b strings.Builder
	b.WriteString(assistantIntro)
	b.WriteString("\n")
	if ds != nil {
		b.WriteString(SourceLine(ds))
		b.WriteString("\n")
	}
	b.WriteString(visualizationGuide)
	return b.String()
}
