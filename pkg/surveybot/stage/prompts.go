package stage

const chatPrompt = `User wants to interact with a Voxco survey design assistant.

Current Survey JSON:
%s

Schema of the Survey JSON:
%s

User message: %q

Analyze the user message. Determine the intent: modify the survey, save the survey, display information about the survey, or exit.
If modifying, generate a JSON Patch (RFC 6902) array that applies the change to the survey JSON. Paths must target existing locations unless adding.
IMPORTANT: When adding new elements (blocks, questions, choices), DO NOT generate an "id" field. Leave it out or set it to null.
If displaying information (showing the structure, answering a question about it), write a text response for the user.
If saving or exiting, respond with the action only.

Output ONLY one JSON object with the "action" and its data.
Possible actions: "modify", "save", "exit", "display".

Examples:
{"action": "modify", "patch": [{"op": "replace", "path": "/name", "value": "New Survey Name"}]}
{"action": "save"}
{"action": "exit"}
{"action": "display", "content": "The survey currently has 5 questions in 2 blocks."}
`

const segmentationPrompt = `You are an AI assistant that helps parse survey documents into structured chunks.
Analyze the following survey document text and separate it into logical chunks representing survey blocks and questions.

Survey Text:
%s

For each chunk, output a JSON object with:
- type: "block" for section headers or groups, "question" for individual questions, "other" for metadata or instructions
- content: the actual text of the chunk
- context: parent or hierarchical information useful for understanding this chunk
- metadata: additional information such as question type or choices

Output a single JSON array of these objects, starting with '[' and ending with ']'.

Example:
[
  {"type": "block", "content": "Section 1: Demographics", "context": "root", "metadata": {"level": 1}},
  {"type": "question", "content": "What is your age?", "context": "Section 1: Demographics", "metadata": {"questionType": "numeric"}}
]
`

const chunkPatchPrompt = `You are an AI assistant that converts survey chunk text into JSON Patch operations (RFC 6902).
Generate JSON Patch operations that incorporate this chunk into the Voxco survey JSON below.

Current Survey JSON State:
%s

Survey Schema:
%s

Chunk to Process:
%s

Guidelines:
1. A block is typically added to the "blocks" array.
2. A question is typically added to the most appropriate block's "questions" array.
3. DO NOT generate an "id" field for new elements (leave it out or set it to null).
4. All paths must be valid for the current survey state.
5. The resulting JSON must conform to the schema.

Output ONLY a JSON Patch array starting with '[' and ending with ']'.

Example:
[{"op": "add", "path": "/blocks/-", "value": {"name": "Demographics", "questions": []}}]
`
