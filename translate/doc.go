// Package translate converts user text between the supported chat languages
// and English, the working language of the agent pipeline.
//
// Translation is performed by a chat model behind the Translator interface.
// Every call is funneled through an admission Queue that caps completed
// translations per rolling window, and results are cached per text so
// repeated phrases do not consume queue capacity. A small Arabic term
// memory corrects domain vocabulary (trade and currency terms) after the
// model translation, and marketplace field values carrying a language
// suffix (name_ar, description_bn, ...) are shielded from translation.
package translate
