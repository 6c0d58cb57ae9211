package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const branchDescription = "The exact branch name (e.g., 'Computer Science and Engineering', 'Mechanical Engineering', 'Electronics and Communication Engineering', 'Electrical and Electronics Engineering', 'Information Technology')"

// Definitions returns the advertised tool schemas in registration order.
// Names, fields and descriptions are part of the engine contract.
func Definitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(string(ToolDetailedInfo),
			mcp.WithDescription("Send course-specific brochures and detailed information to the student via WhatsApp and/or email. IMPORTANT: This tool processes requests in the background. The tool will return a status indicating success or error. Only report errors to the student if the tool explicitly returns an error status. The tool automatically sends WhatsApp message (if phone number provided) and/or email (if email provided) to the student. At least one of phone_number or email must be provided. The tool response will indicate what was successfully sent (WhatsApp, email, or both)."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("The specific course or branch information the student wants (e.g., 'Computer Science and Engineering brochure', 'Mechanical Engineering course details', 'Hostel facilities details')"),
			),
			mcp.WithString("phone_number",
				mcp.Description("The student's phone number (10 digits, will be prefixed with +91 automatically). Optional - provide if available."),
			),
			mcp.WithString("email",
				mcp.Description("The student's email address. Optional - provide if available."),
			),
		),
		mcp.NewTool(string(ToolCareerPaths),
			mcp.WithDescription("Get career paths for a specific branch. Use this tool when the student asks about career options, job prospects, or what they can do after completing a particular branch. This is an internal tool that provides accurate career path information based on the branch name. Always use this tool instead of making up career paths."),
			mcp.WithString("branch", mcp.Required(), mcp.Description(branchDescription)),
		),
		mcp.NewTool(string(ToolAlumniInfo),
			mcp.WithDescription("Get alumni placement information and external program details for a specific branch. Use this tool when the student asks about placements, alumni success stories, or external programs for a particular branch. This is an internal tool that provides accurate branch-specific alumni and placement information."),
			mcp.WithString("branch", mcp.Required(), mcp.Description(branchDescription)),
		),
		mcp.NewTool(string(ToolCheckUser),
			mcp.WithDescription("CRITICAL: After collecting the student's name and at least one contact method (phone number OR email), you MUST call this tool to check if the student already exists in the database. This tool checks the database by phone number or email. If the user exists, it returns their profile (name, email, phone) and analytics (course interest, city, budget, hostel needed, intent level). If user exists, you should skip the standard counseling questions (marks, stream, interests) and use the existing information to have a personalized conversation. If user doesn't exist, proceed with the standard counseling flow. At least one of phone_number or email must be provided."),
			mcp.WithString("phone_number",
				mcp.Description("The student's phone number (10 digits) that you just collected and confirmed. Optional - provide if available."),
			),
			mcp.WithString("email",
				mcp.Description("The student's email address. Optional - provide if available."),
			),
		),
	}
}

// SchemaDocument renders a tool's input schema as a JSON Schema object.
func SchemaDocument(t mcp.Tool) map[string]any {
	props := t.InputSchema.Properties
	if props == nil {
		props = map[string]any{}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.InputSchema.Required) > 0 {
		doc["required"] = t.InputSchema.Required
	}
	return doc
}

func compileSchema(t mcp.Tool) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(SchemaDocument(t))
	if err != nil {
		return nil, fmt.Errorf("encode schema for %s: %w", t.Name, err)
	}

	url := "https://voicecall.local/tools/" + t.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", t.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t.Name, err)
	}
	return schema, nil
}

// validateArgs checks raw against schema.
func validateArgs(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}
