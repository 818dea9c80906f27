package analysis

// Prompts sent to the language model. The scoring prompt pins the response to
// a strict JSON shape so that parsing stays mechanical; anything that drifts
// from it is handled by the salvage path in client.go.

const scoringSystemPrompt = `You are an expert HR recruiter. Analyze the resume against the job description and provide:
1. A score from 0-10 (10 being perfect match)
2. A brief explanation of why the candidate was/wasn't shortlisted
3. Key strengths and weaknesses

Return your response in this exact JSON format:
{
    "score": 7.5,
    "explanation": "Brief explanation of the decision",
    "strengths": ["strength1", "strength2"],
    "weaknesses": ["weakness1", "weakness2"]
}`

const scoringUserPromptFormat = `Job Description:
%s

Resume:
%s

Analyze this resume against the job description and provide your assessment.`

const companyInfoSystemPrompt = `Extract the following information from the job description:
1. Company name
2. Position title
3. Department or team
4. Location (if mentioned)
5. Key requirements or skills mentioned

Return in this exact JSON format:
{
    "company_name": "Company Name",
    "position_title": "Job Title",
    "department": "Department/Team",
    "location": "City, State/Country",
    "key_skills": ["skill1", "skill2", "skill3"]
}`

const companyInfoUserPromptFormat = `Job Description:
%s`
