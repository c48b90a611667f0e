package models

const (
	DefaultCollectionName = "pdf_knowledge"

	// metadata keys stored next to each vector
	MetaSourcePath = "source_path"
	MetaFilename   = "filename"
	MetaPageNumber = "page_number"
	MetaChunkIndex = "chunk_index"

	ContextSeparator = "\n---\n"
)

var (
	SystemPromptTemplate = `You are a helpful assistant answering questions about the user's documents.
Use only the context passages below to answer. Each passage is labelled with the file and page it came from.
If the passages do not contain the answer, say that no relevant information was found in the documents.
Keep answers concise.

Context:
%s`

	NoContextText = "(no relevant passages were found in the indexed documents)"

	CondensePromptTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language. Answer only with the standalone question.

Chat History:
%s
Follow Up Input: %s
Standalone question:`
)
