package models

const (
	ThinkTag = `(?s)<think>.*?</think>`

	ManualNotesFilename = "manual_information.txt"
)

var (
	AnswerSystemPrompt = `You are a helpful assistant that answers questions based on provided knowledge base documents and conversation history. Use both the documents and previous conversation context. Be explicit about what you know and what you don't know. Never invent information.`

	AnswerPromptTemplate = `Based on the following knowledge base documents and our conversation history, answer the question.
If the information is not in the documents, explicitly state what is missing.

Knowledge Base Documents:
%s

Current Question: %s

Provide your response as a JSON object with the following structure:
{
    "answer": "Your answer based on the documents and conversation history. If information is missing, state that explicitly.",
    "confidence": "high|medium|low",
    "missing_info": ["list of specific information gaps"],
    "enrichment_suggestions": ["suggest specific sources where the missing information can be found"],
    "sources": ["list of document filenames used"]
}

Important:
- Answer based on the provided documents and conversation history only.
- Absence of evidence is not evidence of absence: if the documents do not explicitly confirm or deny a fact, treat it as missing information and do not infer a negative answer.
- When missing_info is not empty, provide enrichment_suggestions that focus on WHERE to find the information.
- Set confidence high only when the question is fully answered by the documents with no missing_info, medium when partially answered, low when the documents do not meaningfully answer the question.`

	ClassifySystemPrompt = `You are an intent classification system. Analyze messages and classify their intent.`

	ClassifyPromptTemplate = `Analyze the following user message and classify its intent:

Message: "%s"

Classification criteria:
1. information_request: the user is asking a question or requesting information.
2. information_provision: the user is stating facts to be stored, not asking a question.
3. conversational: casual conversation, acknowledgments, no actionable content.

Respond with JSON in this exact format:
{"intent": "information_request|information_provision|conversational", "confidence": "high|medium|low", "reasoning": "brief explanation"}`

	EmptyContextNotice = "No relevant documents found."
)
