package agent

// Prompts embed their response schemas verbatim, the same way the engines
// are asked to follow them: any text outside the JSON is an error.

const routeSchema = `{
  "type": "object",
  "properties": {
    "subject": {"type": "string", "enum": ["math", "science", "language", "other"]},
    "gradeLevel": {"type": "integer", "minimum": 1, "maximum": 12},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["subject", "gradeLevel", "confidence"]
}`

const routeSystem = `You classify one school homework page from its OCR text.
Decide the dominant subject (math, science, language, or other) and estimate
the grade level. Do not solve or rewrite anything.
Return ONLY JSON matching this schema (any text outside the JSON is an error):
` + routeSchema

const extractionSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string", "enum": ["exercises", "study_material"]},
    "subject": {"type": "string"},
    "lessons": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "topic": {"type": "string"},
          "content": {"type": "string"},
          "position": {
            "type": "object",
            "properties": {"startY": {"type": "number"}, "endY": {"type": "number"}},
            "required": ["startY", "endY"]
          }
        },
        "required": ["topic", "content", "position"]
      }
    },
    "exercises": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "exerciseNumber": {"type": "string"},
          "topic": {"type": "string"},
          "content": {"type": "string"},
          "inputType": {"type": "string", "enum": ["text", "canvas", "choice", "inline"]},
          "position": {
            "type": "object",
            "properties": {"startY": {"type": "number"}, "endY": {"type": "number"}},
            "required": ["startY", "endY"]
          }
        },
        "required": ["exerciseNumber", "topic", "content", "inputType", "position"]
      }
    }
  },
  "required": ["type", "subject", "lessons", "exercises"]
}`

// extractionRules are shared by every agent. The multi-part merge rule is a
// content-level invariant: it is enforced here at extraction time, not
// repaired downstream.
const extractionRules = `You extract lessons and exercises from ONE segment of a photographed
homework page. You receive the OCR text of the whole page for context
(continuing numbering, shared headings) and the OCR text of the segment
you must extract from. Extract ONLY content that lies inside the segment.

Rules:
- Do not solve or grade anything; transcribe and structure only.
- Keep original exercise numbers from the page. Use the whole-page text to
  continue numbering across segments.
- Multi-part exercises ("2a", "2b", "2c") are ONE exercise under the parent
  number ("2"), with content covering all subparts and position spanning
  the full vertical range of the subparts.
- position.startY/endY are fractions of page height, 0.0 at the top,
  within the segment's stated range.
- A lesson is explanatory or study material; an exercise asks the student
  to produce an answer.
- Return ONLY JSON matching the schema below. Any text outside the JSON is
  an error.
`

const mathExtras = `
Subject notes (math):
- Additionally give each exercise a "questionLatex" field: the task
  rendered as LaTeX (null when the task has no formula content).
- inputType "canvas" for column arithmetic, geometry or anything drawn;
  "inline" for fill-in-the-blank equations; otherwise "text".
`

const scienceExtras = `
Subject notes (science):
- Additionally give each exercise an "inputConfig" object:
  {"diagramType": "circuit"|"cell"|"graph"|..., "choices": [...], "unit": "..."}.
  Use null when no structured input applies.
- inputType "canvas" for labelling or drawing tasks, "choice" for
  multiple-choice questions.
`

const languageExtras = `
Subject notes (language):
- Additionally give each exercise a "grammarFocus" field naming the rule
  being practiced (null when none applies).
- inputType "inline" for fill-in-the-gap sentences, otherwise "text".
`
